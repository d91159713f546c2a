// Package model provides domain model for sheetsql
package model

// ColumnKind is the storage kind chosen for a column by type inference.
type ColumnKind int

const (
	// KindText represents a TEXT column
	KindText ColumnKind = iota
	// KindBoolean represents a boolean column stored as INTEGER 0/1
	KindBoolean
	// KindDate represents a date-only column stored as TEXT (YYYY-MM-DD)
	KindDate
	// KindDatetime represents a date-time column stored as TEXT (YYYY-MM-DD HH:MM:SS)
	KindDatetime
	// KindInteger represents an INTEGER column
	KindInteger
	// KindReal represents a REAL column
	KindReal
)

const (
	// sqlTypeText is the SQL TEXT type string
	sqlTypeText = "TEXT"
	// sqlTypeInteger is the SQL INTEGER type string
	sqlTypeInteger = "INTEGER"
	// sqlTypeReal is the SQL REAL type string
	sqlTypeReal = "REAL"
)

// SQLType returns the SQLite column type used to store the kind.
func (k ColumnKind) SQLType() string {
	switch k {
	case KindBoolean, KindInteger:
		return sqlTypeInteger
	case KindReal:
		return sqlTypeReal
	case KindDate, KindDatetime, KindText:
		return sqlTypeText // SQLite stores dates as TEXT in ISO8601 format
	default:
		return sqlTypeText
	}
}

// String returns the lowercase kind name.
func (k ColumnKind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	case KindDatetime:
		return "datetime"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	default:
		return "text"
	}
}

// ColumnSchema is a column name paired with its storage kind.
type ColumnSchema struct {
	Name string
	Kind ColumnKind
}
