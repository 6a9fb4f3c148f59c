package normalize

import (
	"testing"
)

func TestInferScalars(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		hint Hint
		want Value
	}{
		{"empty is null", "", HintNone, Null()},
		{"whitespace is null", "   \t ", HintNone, Null()},
		{"integer", "42", HintNone, Int(42)},
		{"negative integer", "-7", HintNone, Int(-7)},
		{"signed integer", "+13", HintNone, Int(13)},
		{"float", "3.14", HintNone, Float(3.14)},
		{"leading dot float", ".5", HintNone, Float(0.5)},
		{"exponent float", "1e3", HintNone, Float(1000)},
		{"negative exponent", "-2.5e-2", HintNone, Float(-0.025)},
		{"plain string", "Alice", HintNone, String("Alice")},
		{"mixed alnum stays string", "42abc", HintNone, String("42abc")},
		{"zero without hint is integer", "0", HintNone, Int(0)},
		{"one without hint is integer", "1", HintNone, Int(1)},
		{"true without hint is string", "true", HintNone, String("true")},
		{"true with hint", "true", HintBool, Bool(true)},
		{"yes with hint", "YES", HintBool, Bool(true)},
		{"no with hint", "no", HintBool, Bool(false)},
		{"zero with hint is bool", "0", HintBool, Bool(false)},
		{"one with hint is bool", "1", HintBool, Bool(true)},
		{"non-bool with hint falls through", "2", HintBool, Int(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Infer(tt.raw, tt.hint)
			if !got.Equal(tt.want) {
				t.Errorf("Infer(%q, %v) = %v (%s), want %v (%s)",
					tt.raw, tt.hint, got.GoValue(), got.Kind(), tt.want.GoValue(), tt.want.Kind())
			}
		})
	}
}

func TestInferDates(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantDate string
	}{
		{"iso date", "2024-01-15", "2024-01-15"},
		{"iso datetime", "2024-01-15T10:30:00Z", "2024-01-15T10:30:00Z"},
		{"slash date", "2024/01/15", "2024-01-15"},
		{"us date", "1/15/2024", "2024-01-15"},
		{"named month", "Jan 15, 2024", "2024-01-15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Infer(tt.raw, HintNone)
			if got.Kind() != KindDate {
				t.Fatalf("Infer(%q) kind = %s, want date", tt.raw, got.Kind())
			}
			if got.DateString() != tt.wantDate {
				t.Errorf("DateString() = %q, want %q", got.DateString(), tt.wantDate)
			}
		})
	}
}

func TestInferTwoDigitYearPivot(t *testing.T) {
	// The pivot is anchored to PivotBaseYear, so these results do not drift
	// as the wall clock moves.
	tests := []struct {
		in       string
		wantYear int
	}{
		{"1/15/99", 1999},
		{"1/2/47", 1947},
		{"1/2/30", 2030},
	}
	for _, tt := range tests {
		got := Infer(tt.in, HintNone)
		if got.Kind() != KindDate {
			t.Fatalf("Infer(%q) kind = %s, want date", tt.in, got.Kind())
		}
		if y := got.TimeVal().Year(); y != tt.wantYear {
			t.Errorf("Infer(%q) year = %d, want %d", tt.in, y, tt.wantYear)
		}
	}
}

// Compact eight-digit strings must stay integers even though they could be
// parsed as yyyymmdd dates.
func TestInferNumericPrecedenceOverDates(t *testing.T) {
	got := Infer("20060102", HintNone)
	if !got.Equal(Int(20060102)) {
		t.Errorf("Infer(20060102) = %v (%s), want integer", got.GoValue(), got.Kind())
	}
}

func TestInferDeterminism(t *testing.T) {
	inputs := []string{"", "42", "3.14", "true", "2024-01-15", "hello", "  x  ", "1e10"}
	for _, in := range inputs {
		first := Infer(in, HintNone)
		for i := 0; i < 5; i++ {
			if got := Infer(in, HintNone); !got.Equal(first) {
				t.Errorf("Infer(%q) not deterministic: %v vs %v", in, got, first)
			}
		}
	}
}

func TestInferIntOverflowDegradesToFloat(t *testing.T) {
	got := Infer("92233720368547758080", HintNone) // > math.MaxInt64
	if got.Kind() != KindFloat {
		t.Errorf("kind = %s, want float for out-of-range integer", got.Kind())
	}
}

func TestInferPreservesStringWhitespace(t *testing.T) {
	got := Infer("  padded  ", HintNone)
	if !got.Equal(String("  padded  ")) {
		t.Errorf("got %q, want original string with whitespace intact", got.StringVal())
	}
}
