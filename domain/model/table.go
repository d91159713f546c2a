package model

// Table is an inferred sheet ready to be materialized.
type Table struct {
	// Name is the unique, sanitized table name.
	Name string
	// Columns keeps the header order.
	Columns []ColumnProfile
	// RowCount is the number of data rows.
	RowCount int
}

// InferTable runs InferColumn for every column of sheet.
// Column names are taken from the sheet header as-is; callers sanitize them first.
func InferTable(name string, sheet Sheet) Table {
	columns := make([]ColumnProfile, len(sheet.Header))
	for i, label := range sheet.Header {
		columns[i] = InferColumn(label, sheet.Column(i))
	}
	return Table{
		Name:     name,
		Columns:  columns,
		RowCount: len(sheet.Rows),
	}
}

// Row returns the converted values of the i-th row in column order.
func (t Table) Row(i int) []any {
	row := make([]any, len(t.Columns))
	for c, col := range t.Columns {
		if i < len(col.Values) {
			row[c] = col.Values[i]
		}
	}
	return row
}

// Schema returns the column names and kinds.
func (t Table) Schema() []ColumnSchema {
	schema := make([]ColumnSchema, len(t.Columns))
	for i, col := range t.Columns {
		schema[i] = col.Schema()
	}
	return schema
}

// HasColumn reports whether the table has a column with the given name.
func (t Table) HasColumn(name string) bool {
	for _, col := range t.Columns {
		if col.Name == name {
			return true
		}
	}
	return false
}
