package normalize

// row.go implements the row normalizer: raw cells in, a complete normalized
// row out. Ragged input never fails here; rows are padded with nulls or
// truncated to the header width. The only error is a degenerate empty header.

import (
	"bytes"
	"encoding/json"
	"strings"
)

// RowNormalizationError reports a domain that cannot be normalized.
type RowNormalizationError struct {
	Reason string
}

func (e *RowNormalizationError) Error() string {
	return "row normalization: " + e.Reason
}

// Row is an ordered mapping from output column name to normalized value.
// Key order follows the header it was normalized against. Columns whose
// value was omitted by the null policy carry omit=true and are skipped by
// the JSON encoding but still tracked, so the shape invariant stays
// checkable.
type Row struct {
	cols []string
	vals []Value
	omit []bool
}

// Len returns the number of columns, including omitted ones.
func (r Row) Len() int { return len(r.cols) }

// Keys returns the output column names that will appear in the encoding,
// in order.
func (r Row) Keys() []string {
	keys := make([]string, 0, len(r.cols))
	for i, c := range r.cols {
		if r.omit[i] {
			continue
		}
		keys = append(keys, c)
	}
	return keys
}

// Value returns the value for an output column name.
func (r Row) Value(name string) (Value, bool) {
	for i, c := range r.cols {
		if c == name {
			return r.vals[i], true
		}
	}
	return Value{}, false
}

// MarshalJSON encodes the row as a JSON object, preserving column order and
// honoring the null policy recorded at normalization time.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for i, c := range r.cols {
		if r.omit[i] {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false

		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		val, err := r.vals[i].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// GoMap returns the row as a plain map for previews and tests. Omitted keys
// are absent, matching the JSON encoding.
func (r Row) GoMap() map[string]any {
	m := make(map[string]any, len(r.cols))
	for i, c := range r.cols {
		if r.omit[i] {
			continue
		}
		m[c] = r.vals[i].GoValue()
	}
	return m
}

// Normalize converts one raw row into a Row against the given header.
//
// Missing trailing cells become Null; extra trailing cells are dropped. Each
// cell is renamed via the column mapping, optionally split on the array
// delimiter, and typed by Infer. Fails only when the header has zero columns.
func Normalize(rawRow []string, header Header, opts Options) (Row, error) {
	if len(header) == 0 {
		return Row{}, &RowNormalizationError{Reason: "header has no columns"}
	}

	row := Row{
		cols: make([]string, len(header)),
		vals: make([]Value, len(header)),
		omit: make([]bool, len(header)),
	}

	for i, col := range header {
		row.cols[i] = opts.OutputName(col)

		var raw string
		if i < len(rawRow) {
			raw = rawRow[i]
		}

		v := normalizeCell(raw, opts.HintFor(col), opts)
		row.vals[i] = v
		row.omit[i] = v.IsNull() && opts.OmitNulls()
	}

	return row, nil
}

// normalizeCell applies array splitting and type inference to a single cell.
func normalizeCell(raw string, hint Hint, opts Options) Value {
	if opts.ArrayDelimiter != "" && strings.Contains(raw, opts.ArrayDelimiter) {
		parts := strings.Split(raw, opts.ArrayDelimiter)
		elems := make([]Value, len(parts))
		for i, p := range parts {
			elems[i] = inferCell(p, hint, opts)
		}
		return Array(elems)
	}
	return inferCell(raw, hint, opts)
}

func inferCell(raw string, hint Hint, opts Options) Value {
	v := Infer(raw, hint)
	if v.Kind() == KindString && opts.TrimStrings {
		return String(strings.TrimSpace(v.StringVal()))
	}
	return v
}
