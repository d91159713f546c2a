package sheetsql

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/campusinsight/sheetsql/domain/model"
)

// fixtureSheet is one sheet of a generated workbook. Rows start at startRow
// (1-based, default 1) so leading empty rows can be simulated. styles maps a
// column letter to the style applied to that column's data rows.
type fixtureSheet struct {
	name     string
	startRow int
	rows     [][]any
	styles   map[string]*excelize.Style
}

// writeWorkbook builds an XLSX file under t.TempDir and returns its path.
func writeWorkbook(t *testing.T, fileName string, sheets ...fixtureSheet) string {
	t.Helper()

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	for i, s := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", s.name))
		} else {
			_, err := f.NewSheet(s.name)
			require.NoError(t, err)
		}
		start := s.startRow
		if start == 0 {
			start = 1
		}
		for r, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, start+r)
			require.NoError(t, err)
			values := row
			require.NoError(t, f.SetSheetRow(s.name, cell, &values))
		}
		for col, style := range s.styles {
			styleID, err := f.NewStyle(style)
			require.NoError(t, err)
			first := fmt.Sprintf("%s%d", col, start+1)
			last := fmt.Sprintf("%s%d", col, start+len(s.rows)-1)
			require.NoError(t, f.SetCellStyle(s.name, first, last, styleID))
		}
	}

	path := filepath.Join(t.TempDir(), fileName)
	require.NoError(t, f.SaveAs(path))
	return path
}

// staticSource returns a fixed workbook.
type staticSource struct {
	wb model.Workbook
}

func (s staticSource) Open(context.Context) (model.Workbook, error) { return s.wb, nil }
func (s staticSource) Describe() string                             { return "static" }

// openTestStore opens the SQLite file at path and closes it with the test.
func openTestStore(t *testing.T, path string) *sql.DB {
	t.Helper()

	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// queryStrings returns the first column of query as strings.
func queryStrings(t *testing.T, db *sql.DB, query string, args ...any) []string {
	t.Helper()

	rows, err := db.QueryContext(context.Background(), query, args...)
	require.NoError(t, err)
	defer func() {
		_ = rows.Close()
	}()

	var out []string
	for rows.Next() {
		var s sql.NullString
		require.NoError(t, rows.Scan(&s))
		out = append(out, s.String)
	}
	require.NoError(t, rows.Err())
	return out
}

// columnTypes returns name → declared type of table.
func columnTypes(t *testing.T, db *sql.DB, table string) map[string]string {
	t.Helper()

	rows, err := db.QueryContext(context.Background(), "PRAGMA table_info("+quoteIdent(table)+")")
	require.NoError(t, err)
	defer func() {
		_ = rows.Close()
	}()

	types := make(map[string]string)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		require.NoError(t, rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk))
		types[name] = ctype
	}
	require.NoError(t, rows.Err())
	return types
}
