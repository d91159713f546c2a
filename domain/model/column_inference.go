package model

import (
	"database/sql"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Inference thresholds. Behavior at these boundaries is part of the
// loader's observable contract, so they are constants rather than options.
const (
	// BooleanThreshold is the share of non-null values that must map to the
	// boolean vocabulary.
	BooleanThreshold = 0.9
	// NumericThreshold is the share of non-null values that must parse as
	// numbers or dates.
	NumericThreshold = 0.8
	// MinParsedFloor is the minimum absolute number of parsed values before
	// NumericThreshold is trusted.
	MinParsedFloor = 3
	// wholeNumberTolerance is the distance from an integer still treated as whole
	wholeNumberTolerance = 1e-9
)

const (
	// DateLayout is the storage layout of KindDate values
	DateLayout = "2006-01-02"
	// DatetimeLayout is the storage layout of KindDatetime values
	DatetimeLayout = "2006-01-02 15:04:05"
)

// booleanVocabulary maps normalized tokens to 0/1.
var booleanVocabulary = map[string]int64{
	"true": 1, "false": 0,
	"yes": 1, "no": 0,
	"y": 1, "n": 0,
	"1": 1, "0": 0,
}

// numericNullTokens are treated as missing before numeric detection.
var numericNullTokens = map[string]struct{}{
	"": {}, "na": {}, "n/a": {}, "null": {}, "none": {},
}

var thousandsGrouped = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// Common datetime patterns to detect
var datetimePatterns = []struct {
	pattern *regexp.Regexp
	formats []string // Multiple formats for the same pattern
}{
	// ISO8601 with timezone
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`),
		[]string{time.RFC3339, time.RFC3339Nano},
	},
	// ISO8601 without timezone
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}(:\d{2}(\.\d+)?)?$`),
		[]string{"2006-01-02T15:04:05", "2006-01-02T15:04"},
	},
	// ISO8601 date and time with space
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}(:\d{2}(\.\d+)?)?(Z|[+-]\d{2}:?\d{2})?$`),
		[]string{DatetimeLayout, "2006-01-02 15:04", "2006-01-02 15:04:05Z0700", "2006-01-02 15:04:05Z07:00"},
	},
	// ISO8601 date only
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
		[]string{DateLayout},
	},
	{
		regexp.MustCompile(`^\d{4}/\d{1,2}/\d{1,2}$`),
		[]string{"2006/1/2"},
	},
	// US formats
	{
		regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4} \d{1,2}:\d{2}(:\d{2})?( ?(AM|PM|am|pm))?$`),
		[]string{"1/2/2006 15:04:05", "1/2/2006 3:04:05 PM", "1/2/2006 3:04:05PM", "1/2/2006 15:04", "1/2/2006 3:04 PM"},
	},
	{
		regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`),
		[]string{"1/2/2006"},
	},
	{
		regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{2}( \d{1,2}:\d{2})?$`),
		[]string{"1/2/06", "1/2/06 15:04"},
	},
	// Excel's built-in short date rendering
	{
		regexp.MustCompile(`^\d{1,2}-\d{1,2}-\d{2}$`),
		[]string{"1-2-06"},
	},
	// European formats
	{
		regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}( \d{1,2}:\d{2}(:\d{2})?)?$`),
		[]string{"2.1.2006", "2.1.2006 15:04:05", "2.1.2006 15:04"},
	},
	// Month names
	{
		regexp.MustCompile(`^\d{1,2}-[A-Za-z]{3}-(\d{2}|\d{4})$`),
		[]string{"2-Jan-2006", "2-Jan-06"},
	},
	{
		regexp.MustCompile(`^[A-Za-z]+ \d{1,2}, \d{4}$`),
		[]string{"January 2, 2006", "Jan 2, 2006"},
	},
}

// ParseTemporal parses value with the known date layouts.
// Bare numbers are never treated as dates.
func ParseTemporal(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, dp := range datetimePatterns {
		if !dp.pattern.MatchString(value) {
			continue
		}
		// Try each format for this pattern
		for _, format := range dp.formats {
			if t, err := time.Parse(format, value); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// ParseNumber parses value as a finite number, accepting thousands separators.
func ParseNumber(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if thousandsGrouped.MatchString(value) {
		value = strings.ReplaceAll(value, ",", "")
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseBoolean maps value through the boolean vocabulary.
func ParseBoolean(value string) (int64, bool) {
	v, ok := booleanVocabulary[strings.ToLower(strings.TrimSpace(value))]
	return v, ok
}

// ColumnProfile is the inference result for one column.
type ColumnProfile struct {
	// Name is the sanitized column name.
	Name string
	// Kind is the chosen storage kind.
	Kind ColumnKind
	// Values holds nil, int64, float64 or string per row.
	Values []any
	// Confidence is the share of non-null input values that matched Kind.
	Confidence float64
}

// Schema returns the column's name and kind.
func (p ColumnProfile) Schema() ColumnSchema {
	return ColumnSchema{Name: p.Name, Kind: p.Kind}
}

// InferColumn decides the storage kind of one column and converts its values.
// Detection order is boolean, temporal, numeric, text; the first match wins.
func InferColumn(name string, raw []sql.NullString) ColumnProfile {
	if values, confidence, ok := inferBoolean(raw); ok {
		return ColumnProfile{Name: name, Kind: KindBoolean, Values: values, Confidence: confidence}
	}
	if values, kind, confidence, ok := inferTemporal(raw); ok {
		return ColumnProfile{Name: name, Kind: kind, Values: values, Confidence: confidence}
	}
	if values, kind, confidence, ok := inferNumeric(raw); ok {
		return ColumnProfile{Name: name, Kind: kind, Values: values, Confidence: confidence}
	}
	return ColumnProfile{Name: name, Kind: KindText, Values: textValues(raw), Confidence: 1}
}

// meetsParsedThreshold applies the 80% rule with its absolute floor.
func meetsParsedThreshold(parsed, nonNull int) bool {
	required := int(NumericThreshold * float64(nonNull))
	if required < MinParsedFloor {
		required = MinParsedFloor
	}
	return parsed >= required
}

func inferBoolean(raw []sql.NullString) ([]any, float64, bool) {
	values := make([]any, len(raw))
	nonNull, mapped := 0, 0
	for i, cell := range raw {
		if !cell.Valid {
			continue
		}
		nonNull++
		if v, ok := ParseBoolean(cell.String); ok {
			values[i] = v
			mapped++
		}
	}
	if nonNull == 0 || float64(mapped) < BooleanThreshold*float64(nonNull) {
		return nil, 0, false
	}
	return values, float64(mapped) / float64(nonNull), true
}

func inferTemporal(raw []sql.NullString) ([]any, ColumnKind, float64, bool) {
	parsed := make([]*time.Time, len(raw))
	nonNull, count := 0, 0
	allMidnight := true
	for i, cell := range raw {
		if !cell.Valid {
			continue
		}
		nonNull++
		t, ok := ParseTemporal(cell.String)
		if !ok {
			continue
		}
		parsed[i] = &t
		count++
		if t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0 {
			allMidnight = false
		}
	}
	if nonNull == 0 || !meetsParsedThreshold(count, nonNull) {
		return nil, KindText, 0, false
	}

	kind, layout := KindDatetime, DatetimeLayout
	if allMidnight {
		kind, layout = KindDate, DateLayout
	}
	values := make([]any, len(raw))
	for i, t := range parsed {
		if t != nil {
			values[i] = t.Format(layout)
		}
	}
	return values, kind, float64(count) / float64(nonNull), true
}

func inferNumeric(raw []sql.NullString) ([]any, ColumnKind, float64, bool) {
	numbers := make([]*float64, len(raw))
	nonNull, count := 0, 0
	whole := true
	for i, cell := range raw {
		if !cell.Valid {
			continue
		}
		if _, isNull := numericNullTokens[strings.ToLower(strings.TrimSpace(cell.String))]; isNull {
			continue
		}
		nonNull++
		f, ok := ParseNumber(cell.String)
		if !ok {
			continue
		}
		numbers[i] = &f
		count++
		if math.Abs(f-math.Round(f)) > wholeNumberTolerance {
			whole = false
		}
	}
	if nonNull == 0 || !meetsParsedThreshold(count, nonNull) {
		return nil, KindText, 0, false
	}

	values := make([]any, len(raw))
	for i, f := range numbers {
		switch {
		case f == nil:
		case whole:
			values[i] = int64(math.Round(*f))
		default:
			values[i] = *f
		}
	}
	kind := KindReal
	if whole {
		kind = KindInteger
	}
	return values, kind, float64(count) / float64(nonNull), true
}

func textValues(raw []sql.NullString) []any {
	values := make([]any, len(raw))
	for i, cell := range raw {
		if cell.Valid {
			values[i] = cell.String
		}
	}
	return values
}
