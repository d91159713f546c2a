package model

import "testing"

func TestColumnKind_SQLType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind ColumnKind
		want string
		name string
	}{
		{KindText, "TEXT", "text"},
		{KindBoolean, "INTEGER", "boolean"},
		{KindDate, "TEXT", "date"},
		{KindDatetime, "TEXT", "datetime"},
		{KindInteger, "INTEGER", "integer"},
		{KindReal, "REAL", "real"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.kind.SQLType(); got != tt.want {
				t.Errorf("SQLType() = %s, want %s", got, tt.want)
			}
			if got := tt.kind.String(); got != tt.name {
				t.Errorf("String() = %s, want %s", got, tt.name)
			}
		})
	}
}
