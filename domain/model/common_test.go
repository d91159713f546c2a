package model

import (
	"database/sql"
	"reflect"
	"testing"
)

func TestNewSheet(t *testing.T) {
	t.Parallel()

	t.Run("pads short rows and nulls empty cells", func(t *testing.T) {
		t.Parallel()

		sheet := NewSheet("s", []string{"a", "b", "c"}, [][]string{{"1", ""}})
		want := [][]sql.NullString{{{String: "1", Valid: true}, {}, {}}}
		if !reflect.DeepEqual(sheet.Rows, want) {
			t.Errorf("expected rows %v, got %v", want, sheet.Rows)
		}
	})

	t.Run("truncates long rows", func(t *testing.T) {
		t.Parallel()

		sheet := NewSheet("s", []string{"a"}, [][]string{{"1", "2", "3"}})
		if len(sheet.Rows[0]) != 1 {
			t.Errorf("expected 1 cell, got %d", len(sheet.Rows[0]))
		}
	})

	t.Run("empty sheet", func(t *testing.T) {
		t.Parallel()

		sheet := NewSheet("s", []string{"a"}, nil)
		if !sheet.IsEmpty() {
			t.Error("expected empty sheet")
		}
	})
}

func TestSheet_Column(t *testing.T) {
	t.Parallel()

	sheet := NewSheet("s", []string{"a", "b"}, [][]string{{"1", "x"}, {"2", ""}})
	got := sheet.Column(1)
	want := []sql.NullString{{String: "x", Valid: true}, {}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected column %v, got %v", want, got)
	}
}

func TestWorkbook_SheetNames(t *testing.T) {
	t.Parallel()

	wb := Workbook{Name: "book.xlsx", Sheets: []Sheet{{Name: "Offers"}, {Name: "Visas"}}}
	want := []string{"Offers", "Visas"}
	if !reflect.DeepEqual(wb.SheetNames(), want) {
		t.Errorf("expected %v, got %v", want, wb.SheetNames())
	}
}
