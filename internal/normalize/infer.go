package normalize

// infer.go implements per-cell type inference.
//
// Inference is intentionally per-cell: the same column may yield different
// kinds on different rows (a deliberate simplicity tradeoff). Classification
// order is null, boolean (hinted columns only), integer, float, date, string.
// Bare 0/1 always infer as Integer; Boolean requires HintBool so numeric
// columns are not misread as flags.

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Hint is an optional per-column type hint supplied by the caller.
type Hint int

const (
	HintNone Hint = iota
	// HintBool marks a column as boolean-typed, enabling the lexical
	// boolean set (true/false, yes/no, 1/0) for its cells.
	HintBool
)

// intRegex matches an integer lexical pattern: optional sign, digits only.
var intRegex = regexp.MustCompile(`^[+-]?\d+$`)

// floatRegex matches decimals and scientific notation.
var floatRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// PivotBaseYear anchors two-digit-year interpretation to a fixed year so the
// same cell always infers the same date, regardless of when it is parsed.
const PivotBaseYear = 2026

// TwoDigitYearPivot defines how 2-digit years are interpreted. Parsed years
// more than this many years past PivotBaseYear are shifted back a century.
var TwoDigitYearPivot = 20

// Date layouts tried in order. ISO 8601 forms come first; layouts that carry
// a clock component are flagged so the output form can round-trip.
var (
	clockLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	dateOnlyLayouts = []string{
		"2006-01-02",
		"2006/01/02",
		"2006.01.02",
		"1/2/2006", "01/02/2006",
		"1-2-2006", "01-02-2006",
		"1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006",
	}
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
)

// Infer converts a raw cell into a normalized Value.
//
// Empty or whitespace-only cells are Null. Integer and float lexical patterns
// take precedence over dates, so "20060102" stays an integer. Anything that
// matches no pattern is a String, returned as-is (trimming is the
// normalizer's concern, not inference's).
func Infer(raw string, hint Hint) Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Null()
	}

	if hint == HintBool {
		if b, ok := parseBool(trimmed); ok {
			return Bool(b)
		}
	}

	if intRegex.MatchString(trimmed) {
		if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return Int(i)
		}
		// Out of int64 range: degrade to float rather than string.
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return Float(f)
		}
	}

	if floatRegex.MatchString(trimmed) {
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return Float(f)
		}
	}

	if v, ok := parseDate(trimmed); ok {
		return v
	}

	return String(raw)
}

// parseBool matches the fixed case-insensitive boolean lexical set.
func parseBool(s string) (value, ok bool) {
	switch strings.ToLower(s) {
	case "true", "yes", "1":
		return true, true
	case "false", "no", "0":
		return false, true
	default:
		return false, false
	}
}

// parseDate tries the fixed ordered layout list. Four-digit-year layouts are
// unambiguous and tried first; two-digit years apply the pivot rule.
func parseDate(s string) (Value, bool) {
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date(t, true), true
		}
	}
	for _, layout := range dateOnlyLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date(t, false), true
		}
	}

	pivotYear := PivotBaseYear + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return Date(t, false), true
		}
	}

	return Value{}, false
}
