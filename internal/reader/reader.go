// Package reader extracts tabular rows from delimited text files and Excel
// workbooks behind a single RowReader interface. Readers stream: a source is
// never loaded into memory whole, and the header is available as soon as the
// reader is constructed.
package reader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bkv/matrix-normalizer/internal/normalize"
)

// RowReader is a streaming source of raw data rows. Next returns io.EOF when
// the source is exhausted. Close must be called exactly once; it is safe to
// call after Next has returned an error.
type RowReader interface {
	// Header returns the cleaned, deduplicated output header. It is fixed
	// for the lifetime of the reader.
	Header() normalize.Header

	// Next returns the raw cells of the next data row. Rows whose cells are
	// all empty are skipped.
	Next() ([]string, error)

	Close() error
}

// ProgressReporter is implemented by readers that can estimate how much of
// the source has been consumed. Progress is a 0-100 percentage; readers that
// cannot estimate (the workbook reader decompresses on the fly) simply do not
// implement it.
type ProgressReporter interface {
	Progress() int
}

// ErrEmptySource is returned when a source contains no header row at all.
var ErrEmptySource = errors.New("source is empty: no header row found")

// MalformedRecordError reports a data row whose width deviates from the
// header by more than the configured tolerance.
type MalformedRecordError struct {
	Line int
	Want int
	Got  int
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at line %d: %d fields, header has %d", e.Line, e.Got, e.Want)
}

// UnsupportedWorkbookError reports a workbook that cannot be opened or a
// sheet that does not exist.
type UnsupportedWorkbookError struct {
	Path  string
	Sheet string
	Err   error
}

func (e *UnsupportedWorkbookError) Error() string {
	if e.Sheet != "" {
		return fmt.Sprintf("workbook %s: no sheet named %q", e.Path, e.Sheet)
	}
	return fmt.Sprintf("workbook %s: %v", e.Path, e.Err)
}

func (e *UnsupportedWorkbookError) Unwrap() error { return e.Err }

func emptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
