package normalize

import (
	"errors"
	"testing"
)

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr bool
	}{
		{"defaults valid", func(o *Options) {}, false},
		{"jsonl valid", func(o *Options) { o.Format = FormatJSONL }, false},
		{"pretty json valid", func(o *Options) { o.PrettyPrint = true }, false},
		{"missing format", func(o *Options) { o.Format = "" }, true},
		{"unknown format", func(o *Options) { o.Format = "xml" }, true},
		{"unknown null policy", func(o *Options) { o.NullPolicy = "drop" }, true},
		{"empty null policy valid", func(o *Options) { o.NullPolicy = "" }, false},
		{
			"pretty jsonl rejected",
			func(o *Options) { o.Format = FormatJSONL; o.PrettyPrint = true },
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			err := opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr = %v", err, tt.wantErr)
			}
			if err != nil {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("err type = %T, want *ValidationError", err)
				}
			}
		})
	}
}

func TestOptionsHintFor(t *testing.T) {
	opts := DefaultOptions()
	opts.BoolColumns = []string{"active", "enabled"}

	if opts.HintFor("active") != HintBool {
		t.Error("active should carry the boolean hint")
	}
	if opts.HintFor("count") != HintNone {
		t.Error("count should carry no hint")
	}
}

func TestOptionsOutputName(t *testing.T) {
	opts := DefaultOptions()
	opts.ColumnMapping = map[string]string{"a": "alpha", "b": ""}

	if got := opts.OutputName("a"); got != "alpha" {
		t.Errorf("OutputName(a) = %q, want alpha", got)
	}
	// An empty mapping target keeps the source name.
	if got := opts.OutputName("b"); got != "b" {
		t.Errorf("OutputName(b) = %q, want b", got)
	}
	if got := opts.OutputName("c"); got != "c" {
		t.Errorf("OutputName(c) = %q, want c", got)
	}
}
