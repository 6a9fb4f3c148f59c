// Package convert wires readers, the normalizer, and the generators into the
// conversion pipeline, and owns the error taxonomy the HTTP layer reports
// from.
//
// # Error Codes Reference
//
// Every failure surfaced to a client carries a stable code. Typed errors from
// the pipeline packages map directly; anything else falls back to pattern
// matching on the error text, and finally to ERR000.
//
//	OPT001  - Invalid conversion options
//	FILE001 - Upload rejected by validation (extension, size, or content)
//	FILE002 - Source has no header row
//	FILE003 - File not found or expired
//	PARSE001 - Malformed record in the source
//	PARSE002 - Workbook cannot be opened or sheet is missing
//	OUT001  - Output could not be generated or written
//	BUSY001 - Too many conversions in progress
//	REQ001  - Request cancelled
//	REQ002  - Request timed out
//	ERR000  - Unexpected error (check server logs)
package convert

import (
	"context"
	"errors"
	"strings"

	"github.com/bkv/matrix-normalizer/internal/generate"
	"github.com/bkv/matrix-normalizer/internal/normalize"
	"github.com/bkv/matrix-normalizer/internal/reader"
	"github.com/bkv/matrix-normalizer/internal/storage"
)

// ErrTooManyConversions is returned when the concurrency limiter is
// saturated and a new conversion cannot be admitted.
var ErrTooManyConversions = errors.New("too many conversions in progress")

// UnsupportedFileTypeError reports a stored file whose extension has no
// reader.
type UnsupportedFileTypeError struct {
	Ext string
}

func (e *UnsupportedFileTypeError) Error() string {
	return "unsupported file type: " + e.Ext
}

// Kind buckets errors for HTTP status selection.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindMalformed  Kind = "malformed"
	KindBusy       Kind = "busy"
	KindCancelled  Kind = "cancelled"
	KindInternal   Kind = "internal"
)

// Classify maps an error to its Kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, storage.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTooManyConversions):
		return KindBusy
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	}

	var (
		optErr  *normalize.ValidationError
		fileErr *storage.FileValidationError
		typeErr *UnsupportedFileTypeError
		recErr  *reader.MalformedRecordError
		bookErr *reader.UnsupportedWorkbookError
		rowErr  *normalize.RowNormalizationError
		genErr  *generate.GenerationError
	)
	switch {
	case errors.As(err, &optErr), errors.As(err, &fileErr), errors.As(err, &typeErr):
		return KindValidation
	case errors.Is(err, reader.ErrEmptySource):
		return KindMalformed
	case errors.As(err, &recErr), errors.As(err, &bookErr), errors.As(err, &rowErr):
		return KindMalformed
	case errors.As(err, &genErr):
		return KindInternal
	default:
		return KindInternal
	}
}

// UserMessage is the client-facing rendering of an error.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// MapError converts a pipeline error to a UserMessage. Typed errors map
// exactly; untyped errors fall back to case-insensitive substring patterns,
// first match wins.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		return UserMessage{
			Message: "File not found",
			Action:  "The file may have expired. Upload it again",
			Code:    "FILE003",
		}
	case errors.Is(err, reader.ErrEmptySource):
		return UserMessage{
			Message: "The file has no header row",
			Action:  "Upload a file with at least a header line",
			Code:    "FILE002",
		}
	case errors.Is(err, ErrTooManyConversions):
		return UserMessage{
			Message: "Too many conversions in progress",
			Action:  "Please wait a moment and try again",
			Code:    "BUSY001",
		}
	case errors.Is(err, context.Canceled):
		return UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		}
	case errors.Is(err, context.DeadlineExceeded):
		return UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "REQ002",
		}
	}

	var optErr *normalize.ValidationError
	if errors.As(err, &optErr) {
		return UserMessage{
			Message: "Invalid conversion options: " + optErr.Reason,
			Action:  "Correct the options and retry",
			Code:    "OPT001",
		}
	}
	var fileErr *storage.FileValidationError
	if errors.As(err, &fileErr) {
		return UserMessage{
			Message: "Upload rejected: " + fileErr.Reason,
			Action:  "Upload a .csv, .tsv, or .xlsx file within the size limit",
			Code:    "FILE001",
		}
	}
	var typeErr *UnsupportedFileTypeError
	if errors.As(err, &typeErr) {
		return UserMessage{
			Message: "Unsupported file type " + typeErr.Ext,
			Action:  "Upload a .csv, .tsv, or .xlsx file",
			Code:    "FILE001",
		}
	}
	var recErr *reader.MalformedRecordError
	if errors.As(err, &recErr) {
		return UserMessage{
			Message: recErr.Error(),
			Action:  "Fix the inconsistent row or relax the skew tolerance",
			Code:    "PARSE001",
		}
	}
	var bookErr *reader.UnsupportedWorkbookError
	if errors.As(err, &bookErr) {
		return UserMessage{
			Message: "Workbook could not be read",
			Action:  "Check that the file is a valid .xlsx and the sheet name is correct",
			Code:    "PARSE002",
		}
	}
	var genErr *generate.GenerationError
	if errors.As(err, &genErr) {
		return UserMessage{
			Message: "Output could not be generated",
			Action:  "Please try again",
			Code:    "OUT001",
		}
	}

	return mapByPattern(err)
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// Patterns for errors that arrive untyped, matched case-insensitively in
// order. Specific before general.
var errorPatterns = []errorPattern{
	{
		pattern: "no such file",
		msg: UserMessage{
			Message: "File not found",
			Action:  "The file may have expired. Upload it again",
			Code:    "FILE003",
		},
	},
	{
		pattern: "quote",
		msg: UserMessage{
			Message: "The file has inconsistent quoting",
			Action:  "Re-export the file with standard CSV quoting",
			Code:    "PARSE001",
		},
	},
	{
		pattern: "no space left",
		msg: UserMessage{
			Message: "Server storage is full",
			Action:  "Please try again later",
			Code:    "OUT001",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "REQ002",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

func mapByPattern(err error) UserMessage {
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}
