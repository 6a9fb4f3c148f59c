package convert

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bkv/matrix-normalizer/internal/normalize"
	"github.com/bkv/matrix-normalizer/internal/reader"
	"github.com/bkv/matrix-normalizer/internal/storage"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, Kind("")},
		{"not found", storage.ErrNotFound, KindNotFound},
		{"wrapped not found", fmt.Errorf("lookup: %w", storage.ErrNotFound), KindNotFound},
		{"busy", ErrTooManyConversions, KindBusy},
		{"cancelled", context.Canceled, KindCancelled},
		{"deadline", context.DeadlineExceeded, KindCancelled},
		{"bad options", &normalize.ValidationError{Field: "Format", Reason: "x"}, KindValidation},
		{"bad upload", &storage.FileValidationError{Filename: "a.exe", Reason: "x"}, KindValidation},
		{"bad extension", &UnsupportedFileTypeError{Ext: ".doc"}, KindValidation},
		{"empty source", reader.ErrEmptySource, KindMalformed},
		{"malformed record", &reader.MalformedRecordError{Line: 3, Want: 2, Got: 9}, KindMalformed},
		{"bad workbook", &reader.UnsupportedWorkbookError{Path: "x.xlsx"}, KindMalformed},
		{"anything else", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestMapErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"not found", storage.ErrNotFound, "FILE003"},
		{"empty source", reader.ErrEmptySource, "FILE002"},
		{"busy", ErrTooManyConversions, "BUSY001"},
		{"cancelled", context.Canceled, "REQ001"},
		{"deadline", context.DeadlineExceeded, "REQ002"},
		{"bad options", &normalize.ValidationError{Reason: "x"}, "OPT001"},
		{"bad upload", &storage.FileValidationError{Reason: "x"}, "FILE001"},
		{"bad extension", &UnsupportedFileTypeError{Ext: ".doc"}, "FILE001"},
		{"malformed record", &reader.MalformedRecordError{Line: 1}, "PARSE001"},
		{"bad workbook", &reader.UnsupportedWorkbookError{Path: "x"}, "PARSE002"},
		{"missing file text", errors.New("open /tmp/x: no such file or directory"), "FILE003"},
		{"quote error text", errors.New(`parse error: bare " in non-quoted-field`), "PARSE001"},
		{"unknown", errors.New("boom"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.code {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, got.Code, tt.code)
			}
			if got.Message == "" {
				t.Error("message is empty")
			}
		})
	}
}

func TestMapErrorNil(t *testing.T) {
	if got := MapError(nil); got != (UserMessage{}) {
		t.Errorf("MapError(nil) = %+v, want zero", got)
	}
}
