package normalize

// options.go defines the immutable configuration for one conversion and its
// validation. Options are validated once, when a preview or job is created;
// the pipeline itself trusts them.

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Output formats.
const (
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
)

// Null policies.
const (
	// NullPolicyKeep emits null scalars as explicit JSON nulls.
	NullPolicyKeep = "keep"
	// NullPolicyOmit drops null-valued keys from output rows entirely.
	NullPolicyOmit = "omit"
)

// Options configures one conversion run. The zero value is not valid; use
// DefaultOptions or fill Format explicitly.
type Options struct {
	// Format selects the output encoding.
	Format string `json:"output_format" validate:"required,oneof=json jsonl"`

	// IncludeMetadata wraps (json) or prefixes (jsonl) the output with
	// source metadata.
	IncludeMetadata bool `json:"include_metadata"`

	// PrettyPrint indents JSON output with two spaces. Rejected for jsonl,
	// where multi-line objects would break line framing.
	PrettyPrint bool `json:"pretty_print"`

	// ColumnMapping renames source columns to target keys.
	ColumnMapping map[string]string `json:"column_mapping,omitempty"`

	// NullPolicy controls whether null cells appear as explicit nulls or
	// the key is omitted. Empty means keep.
	NullPolicy string `json:"null_policy,omitempty" validate:"omitempty,oneof=keep omit"`

	// ArrayDelimiter, when non-empty, splits matching cells into arrays of
	// independently inferred values.
	ArrayDelimiter string `json:"array_delimiter,omitempty"`

	// TrimStrings trims leading/trailing whitespace from string cells.
	TrimStrings bool `json:"trim_strings"`

	// BoolColumns lists source columns to treat as boolean-typed. Without
	// a hint, 0/1 cells infer as integers.
	BoolColumns []string `json:"bool_columns,omitempty"`

	// Sheet selects a worksheet by name for spreadsheet sources. Empty
	// means the first sheet.
	Sheet string `json:"sheet,omitempty"`
}

// DefaultOptions returns compact JSON output with explicit nulls.
func DefaultOptions() Options {
	return Options{Format: FormatJSON, NullPolicy: NullPolicyKeep}
}

// OmitNulls reports whether the null policy drops null-valued keys.
func (o Options) OmitNulls() bool { return o.NullPolicy == NullPolicyOmit }

// HintFor returns the inference hint for a source column.
func (o Options) HintFor(column string) Hint {
	for _, c := range o.BoolColumns {
		if c == column {
			return HintBool
		}
	}
	return HintNone
}

// OutputName maps a source column to its output key via ColumnMapping.
func (o Options) OutputName(column string) string {
	if mapped, ok := o.ColumnMapping[column]; ok && mapped != "" {
		return mapped
	}
	return column
}

// ValidationError reports invalid conversion options.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid options: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid options: %s", e.Reason)
}

var optionsValidator = validator.New()

// Validate checks the options and returns a *ValidationError describing the
// first problem found.
func (o Options) Validate() error {
	if err := optionsValidator.Struct(o); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return &ValidationError{
				Field:  fe.Field(),
				Reason: fmt.Sprintf("failed %q constraint on value %q", fe.Tag(), fmt.Sprint(fe.Value())),
			}
		}
		return &ValidationError{Reason: err.Error()}
	}

	if o.Format == FormatJSONL && o.PrettyPrint {
		return &ValidationError{
			Field:  "PrettyPrint",
			Reason: "pretty printing is not supported for jsonl output (it would break line framing)",
		}
	}

	return nil
}
