package sheetsql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/campusinsight/sheetsql/domain/model"
)

// numFmtKind is what a cell number format says about the stored number.
type numFmtKind int

const (
	numFmtPlain numFmtKind = iota
	numFmtDate
	numFmtTime
)

// Built-in number format ids. 27-36 and 50-58 are the East Asian date formats.
var builtInNumFmtKinds = map[int]numFmtKind{
	14: numFmtDate, 15: numFmtDate, 16: numFmtDate, 17: numFmtDate, 22: numFmtDate,
	27: numFmtDate, 28: numFmtDate, 29: numFmtDate, 30: numFmtDate, 31: numFmtDate,
	32: numFmtDate, 33: numFmtDate, 34: numFmtDate, 35: numFmtDate, 36: numFmtDate,
	50: numFmtDate, 51: numFmtDate, 52: numFmtDate, 53: numFmtDate, 54: numFmtDate,
	55: numFmtDate, 56: numFmtDate, 57: numFmtDate, 58: numFmtDate,
	18: numFmtTime, 19: numFmtTime, 20: numFmtTime, 21: numFmtTime,
	45: numFmtTime, 46: numFmtTime, 47: numFmtTime,
}

// cellValues turns stored XLSX numbers into the values the sheet means.
// Numbers styled with a date or time format become ISO text; every other
// number is kept as stored, so percent and currency cells stay numeric.
type cellValues struct {
	file     *excelize.File
	date1904 bool
	formats  map[int]numFmtKind // style id -> kind
}

// apply rewrites numeric cells of rows in place. rows[i] is worksheet row i+1.
func (cv *cellValues) apply(sheetName string, rows [][]string) error {
	for i, row := range rows {
		for j, value := range row {
			serial, err := strconv.ParseFloat(value, 64)
			if err != nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return err
			}
			kind, err := cv.kindOf(sheetName, cell)
			if err != nil {
				return err
			}
			if kind == numFmtPlain {
				continue
			}
			t, err := excelize.ExcelDateToTime(serial, cv.date1904)
			if err != nil {
				continue
			}
			switch {
			case kind == numFmtTime:
				row[j] = t.Format(time24Layout)
			case t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0:
				row[j] = t.Format(model.DateLayout)
			default:
				row[j] = t.Format(model.DatetimeLayout)
			}
		}
	}
	return nil
}

const time24Layout = "15:04:05"

func (cv *cellValues) kindOf(sheetName, cell string) (numFmtKind, error) {
	styleID, err := cv.file.GetCellStyle(sheetName, cell)
	if err != nil {
		return numFmtPlain, fmt.Errorf("failed to read style of %s!%s: %w", sheetName, cell, err)
	}
	if kind, ok := cv.formats[styleID]; ok {
		return kind, nil
	}

	kind := numFmtPlain
	style, err := cv.file.GetStyle(styleID)
	if err == nil {
		if k, ok := builtInNumFmtKinds[style.NumFmt]; ok {
			kind = k
		} else if style.CustomNumFmt != nil {
			kind = classifyNumFmt(*style.CustomNumFmt)
		}
	}
	cv.formats[styleID] = kind
	return kind, nil
}

// classifyNumFmt inspects a custom format code. Literals, escapes and
// bracketed sections other than elapsed time are ignored; a year or day
// token makes it a date, an hour or second token a time.
func classifyNumFmt(code string) numFmtKind {
	section, _, _ := strings.Cut(code, ";")

	var b strings.Builder
	for i := 0; i < len(section); i++ {
		switch c := section[i]; c {
		case '"':
			if end := strings.IndexByte(section[i+1:], '"'); end >= 0 {
				i += end + 1
			} else {
				i = len(section)
			}
		case '\\', '_', '*':
			i++
		case '[':
			end := strings.IndexByte(section[i+1:], ']')
			if end < 0 {
				i = len(section)
				continue
			}
			inner := strings.ToLower(section[i+1 : i+1+end])
			if strings.Trim(inner, "hms") == "" {
				b.WriteString(inner)
			}
			i += end + 1
		default:
			b.WriteByte(c)
		}
	}

	tokens := strings.ToLower(b.String())
	switch {
	case strings.ContainsAny(tokens, "yd"):
		return numFmtDate
	case strings.ContainsAny(tokens, "hs"):
		return numFmtTime
	default:
		return numFmtPlain
	}
}
