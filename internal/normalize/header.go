package normalize

// header.go builds output headers from raw source header rows.
//
// Column names are cleaned (trimmed, problem characters collapsed to
// underscores), blanks become positional column_N names, and duplicates are
// suffixed deterministically (name, name_2, name_3, ...). Source column order
// is preserved and drives the key order of every output row.

import (
	"fmt"
	"regexp"
	"strings"
)

// Header is an ordered sequence of unique output column names.
type Header []string

var squashRegex = regexp.MustCompile(`[\s_]+`)

// NewHeader builds a Header from a raw header row. Names are cleaned and
// deduplicated; the result is empty only if the input is empty. Duplicate
// detection is case-insensitive so "Name" and "name" do not collide in
// case-folding consumers.
func NewHeader(raw []string) Header {
	h := make(Header, 0, len(raw))
	counts := make(map[string]int, len(raw))
	used := make(map[string]bool, len(raw))

	for i, name := range raw {
		cleaned := CleanColumnName(name)
		if cleaned == "" {
			cleaned = fmt.Sprintf("column_%d", i+1)
		}

		key := strings.ToLower(cleaned)
		n := counts[key]
		candidate := cleaned
		if n > 0 {
			candidate = fmt.Sprintf("%s_%d", cleaned, n+1)
		}
		for used[strings.ToLower(candidate)] {
			n++
			candidate = fmt.Sprintf("%s_%d", cleaned, n+1)
		}
		counts[key] = n + 1
		used[strings.ToLower(candidate)] = true

		h = append(h, candidate)
	}
	return h
}

// CleanColumnName normalizes a raw column name: trims whitespace and
// surrounding quotes, replaces characters outside [alnum _ - space] with
// underscores, and squashes runs of whitespace/underscores.
func CleanColumnName(name string) string {
	s := strings.TrimSpace(name)
	s = strings.Trim(s, `"'`)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '-' || r == ' ':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	s = squashRegex.ReplaceAllString(b.String(), "_")
	return strings.Trim(s, "_")
}

// Index returns the position of name in the header, or -1.
func (h Header) Index(name string) int {
	for i, n := range h {
		if n == name {
			return i
		}
	}
	return -1
}

// Contains reports whether name is one of the header's columns.
func (h Header) Contains(name string) bool { return h.Index(name) >= 0 }
