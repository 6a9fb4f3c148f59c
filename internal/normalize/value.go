// Package normalize converts heterogeneous raw tabular cells into a closed
// set of typed JSON-compatible values. It owns the NormalizedValue union, the
// per-cell type inference engine, header construction, and the row normalizer
// that the readers and generators are built around.
package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Kind identifies the active variant of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindDate
	KindArray
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Value is a normalized cell: a tagged union over null, bool, int64, float64,
// string, date, and a one-level array of scalars. Exactly one variant is
// active; the zero Value is Null. Arrays only arise from delimiter splitting
// and never nest.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	t    time.Time
	arr  []Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a float value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Date returns a date value. hasClock records whether the source carried a
// time-of-day component, which controls the ISO 8601 output form.
func Date(t time.Time, hasClock bool) Value {
	return Value{kind: KindDate, t: t, b: hasClock}
}

// Array returns an array value over the given elements. Element arrays are
// not permitted; callers must only pass scalar values.
func Array(elems []Value) Value { return Value{kind: KindArray, arr: elems} }

// Kind returns the active variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is the null variant.
func (v Value) IsNull() bool { return v.kind == KindNull }

// BoolVal returns the boolean payload. Only meaningful for KindBool.
func (v Value) BoolVal() bool { return v.b }

// IntVal returns the integer payload. Only meaningful for KindInt.
func (v Value) IntVal() int64 { return v.i }

// FloatVal returns the float payload. Only meaningful for KindFloat.
func (v Value) FloatVal() float64 { return v.f }

// StringVal returns the string payload. Only meaningful for KindString.
func (v Value) StringVal() string { return v.s }

// TimeVal returns the date payload. Only meaningful for KindDate.
func (v Value) TimeVal() time.Time { return v.t }

// Elems returns the array payload. Only meaningful for KindArray.
func (v Value) Elems() []Value { return v.arr }

// DateString renders a date value as ISO 8601: date-only inputs as
// "2006-01-02", inputs with a time component as RFC 3339.
func (v Value) DateString() string {
	if v.b {
		return v.t.Format(time.RFC3339)
	}
	return v.t.Format("2006-01-02")
}

// MarshalJSON encodes the value with its JSON-native representation:
// null, true/false, number, string, ISO 8601 date string, or array.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return strconv.AppendBool(nil, v.b), nil
	case KindInt:
		return strconv.AppendInt(nil, v.i, 10), nil
	case KindFloat:
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	case KindDate:
		return json.Marshal(v.DateString())
	case KindArray:
		if v.arr == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.arr)
	default:
		return nil, fmt.Errorf("unencodable value kind %d", v.kind)
	}
}

// Equal reports deep value equality. Dates compare by instant and output
// form, so two values that encode identically are equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindDate:
		return v.t.Equal(o.t) && v.b == o.b
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// GoValue returns the value as a plain Go type (nil, bool, int64, float64,
// string, or []any), with dates rendered as their ISO 8601 string. Useful for
// previews and tests that compare against generic JSON decoding.
func (v Value) GoValue() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindDate:
		return v.DateString()
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.GoValue()
		}
		return out
	default:
		return nil
	}
}
