package msgtemplate

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind tags the type of a cell value.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindDate
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "string"
	}
}

// DateLayout is the ISO calendar date produced by the "date" directive.
const DateLayout = "2006-01-02"

// dateLayouts are tried in order when inferring or reformatting dates.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"01/02/2006 15:04",
	"02.01.2006",
	"02.01.2006 15:04",
	"01-02-06",
}

// Value is a typed cell. Raw keeps the text exactly as ingested (trimmed) and is what renders
// when no directive applies, so leading zeros in phone-like columns survive.
type Value struct {
	Kind Kind
	Raw  string
	Num  float64
	Time time.Time
}

// Row maps a column name to its typed value.
type Row map[string]Value

// Text builds a string value.
func Text(s string) Value {
	return Value{Kind: KindString, Raw: s}
}

// Number builds a numeric value.
func Number(f float64) Value {
	return Value{Kind: KindNumber, Raw: strconv.FormatFloat(f, 'f', -1, 64), Num: f}
}

// Date builds a date value rendered as an ISO calendar date.
func Date(t time.Time) Value {
	return Value{Kind: KindDate, Raw: t.Format(DateLayout), Time: t}
}

// Infer classifies raw cell text as a number, a date or a string.
// PRE: none
// POST: Returned Value has Raw equal to the trimmed input
func Infer(raw string) Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Value{Kind: KindString}
	}
	if f, ok := parseNumber(s); ok {
		return Value{Kind: KindNumber, Raw: s, Num: f}
	}
	if t, ok := parseDate(s); ok {
		return Value{Kind: KindDate, Raw: s, Time: t}
	}
	return Value{Kind: KindString, Raw: s}
}

// String returns the text substituted into templates.
func (v Value) String() string {
	return v.Raw
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
