package normalize

import (
	"reflect"
	"testing"
)

func TestCleanColumnName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "name", "name"},
		{"trims whitespace", "  amount  ", "amount"},
		{"spaces to underscore", "First Name", "First_Name"},
		{"strips quotes", `"email"`, "email"},
		{"special chars", "price ($)", "price"},
		{"squashes runs", "a___b   c", "a_b_c"},
		{"unicode replaced", "prix (€)", "prix"},
		{"hyphen kept", "zip-code", "zip-code"},
		{"trims underscores", "_hidden_", "hidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanColumnName(tt.in); got != tt.want {
				t.Errorf("CleanColumnName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewHeader(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want Header
	}{
		{
			"simple",
			[]string{"id", "name", "email"},
			Header{"id", "name", "email"},
		},
		{
			"blank columns get positions",
			[]string{"id", "", "  "},
			Header{"id", "column_2", "column_3"},
		},
		{
			"duplicates suffixed",
			[]string{"name", "name", "name"},
			Header{"name", "name_2", "name_3"},
		},
		{
			"case-insensitive duplicates",
			[]string{"Name", "name"},
			Header{"Name", "name_2"},
		},
		{
			"suffix collision advances",
			[]string{"a", "a_2", "a"},
			Header{"a", "a_2", "a_3"},
		},
		{
			"cleaning applied before dedupe",
			[]string{"first name", "first_name"},
			Header{"first_name", "first_name_2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewHeader(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NewHeader(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestHeaderIndex(t *testing.T) {
	h := NewHeader([]string{"id", "name"})
	if got := h.Index("name"); got != 1 {
		t.Errorf("Index(name) = %d, want 1", got)
	}
	if got := h.Index("missing"); got != -1 {
		t.Errorf("Index(missing) = %d, want -1", got)
	}
	if !h.Contains("id") || h.Contains("nope") {
		t.Error("Contains gave wrong answers")
	}
}
