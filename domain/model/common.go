package model

import "database/sql"

// Workbook is an ordered collection of named sheets read from one source document.
type Workbook struct {
	// Name identifies the source (file path or remote key).
	Name string
	// Sheets keeps the document order.
	Sheets []Sheet
}

// Sheet is a header row plus raw data rows.
// A cell with Valid=false is a missing value.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]sql.NullString
}

// NewSheet creates a sheet from string rows. Empty strings become nulls
// and rows are padded or truncated to the header width.
func NewSheet(name string, header []string, rows [][]string) Sheet {
	out := make([][]sql.NullString, 0, len(rows))
	for _, row := range rows {
		cells := make([]sql.NullString, len(header))
		for i := range cells {
			if i < len(row) && row[i] != "" {
				cells[i] = sql.NullString{String: row[i], Valid: true}
			}
		}
		out = append(out, cells)
	}
	return Sheet{Name: name, Header: header, Rows: out}
}

// IsEmpty reports whether the sheet has no data rows.
func (s Sheet) IsEmpty() bool {
	return len(s.Rows) == 0
}

// Column returns the raw values of the i-th column.
func (s Sheet) Column(i int) []sql.NullString {
	values := make([]sql.NullString, len(s.Rows))
	for r, row := range s.Rows {
		if i < len(row) {
			values[r] = row[i]
		}
	}
	return values
}

// SheetNames returns the sheet names in workbook order.
func (w Workbook) SheetNames() []string {
	names := make([]string, len(w.Sheets))
	for i, s := range w.Sheets {
		names[i] = s.Name
	}
	return names
}
