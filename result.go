package sheetsql

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// ResultSource tells which resolution stage produced a result.
type ResultSource string

const (
	// SourceView means a table or view of that name was read directly
	SourceView ResultSource = "view"
	// SourceDynamic means a role-resolving strategy built the query
	SourceDynamic ResultSource = "dynamic"
	// SourceFallback means a fixed query ran against the base table
	SourceFallback ResultSource = "fallback"
)

// Result is a report in column order.
type Result struct {
	View    string
	Source  ResultSource
	Columns []string
	Rows    [][]any
}

// Records returns each row as a column-to-value map.
func (r *Result) Records() []map[string]any {
	records := make([]map[string]any, len(r.Rows))
	for i, row := range r.Rows {
		rec := make(map[string]any, len(r.Columns))
		for c, col := range r.Columns {
			if c < len(row) {
				rec[col] = row[c]
			}
		}
		records[i] = rec
	}
	return records
}

// MarshalJSON encodes the result with row objects whose keys keep column order.
func (r *Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"view":`)
	if err := writeJSON(&buf, r.View); err != nil {
		return nil, err
	}
	buf.WriteString(`,"source":`)
	if err := writeJSON(&buf, r.Source); err != nil {
		return nil, err
	}
	buf.WriteString(`,"columns":`)
	columns := r.Columns
	if columns == nil {
		columns = []string{}
	}
	if err := writeJSON(&buf, columns); err != nil {
		return nil, err
	}
	buf.WriteString(`,"rows":[`)
	for i, row := range r.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for c, col := range r.Columns {
			if c > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(&buf, col); err != nil {
				return nil, err
			}
			buf.WriteByte(':')
			var value any
			if c < len(row) {
				value = row[c]
			}
			if err := writeJSON(&buf, value); err != nil {
				return nil, err
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteString(`]}`)
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	buf.Write(data)
	return nil
}

// queryResult runs query on conn and converts the rows for presentation:
// []byte becomes string and NULLs in numeric columns become 0.
func queryResult(ctx context.Context, conn *sql.Conn, query string, args ...any) ([]string, [][]any, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	declTypes := make([]string, len(columns))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			declTypes[i] = ct.DatabaseTypeName()
		}
	}

	out := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	fillNumericNulls(declTypes, out)
	return columns, out, nil
}

// fillNumericNulls replaces NULL with 0 in columns declared numeric, and in
// undeclared columns whose non-null values are all numbers.
func fillNumericNulls(declTypes []string, rows [][]any) {
	for c, decl := range declTypes {
		if !isNumericDecl(decl) && !(decl == "" && allNumeric(rows, c)) {
			continue
		}
		for _, row := range rows {
			if row[c] == nil {
				row[c] = int64(0)
			}
		}
	}
}

func isNumericDecl(decl string) bool {
	decl = strings.ToUpper(decl)
	for _, marker := range []string{"INT", "REAL", "FLOA", "DOUB", "NUM", "DEC"} {
		if strings.Contains(decl, marker) {
			return true
		}
	}
	return false
}

func allNumeric(rows [][]any, c int) bool {
	seen := false
	for _, row := range rows {
		switch row[c].(type) {
		case nil:
		case int64, float64, int, int32, float32:
			seen = true
		default:
			return false
		}
	}
	return seen
}
