// Package generate renders normalized rows as JSON or JSONL output.
//
// JSON output is an array of row objects, optionally wrapped in a metadata
// envelope; it is buffered so the envelope can carry an exact row count.
// JSONL output streams with constant memory: one compact object per line,
// optionally preceded by a metadata line. The metadata line cannot carry a
// row count, since it is written before the rows are read.
package generate

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bkv/matrix-normalizer/internal/normalize"
)

// Content types for the supported output formats.
const (
	ContentTypeJSON  = "application/json"
	ContentTypeJSONL = "application/jsonl"
)

// ContentType returns the MIME type for an output format, defaulting to
// JSON for anything unrecognized.
func ContentType(format string) string {
	if format == normalize.FormatJSONL {
		return ContentTypeJSONL
	}
	return ContentTypeJSON
}

// RowSource yields normalized rows. Next returns io.EOF when exhausted.
type RowSource interface {
	Next() (normalize.Row, error)
}

// Metadata describes the source of a conversion. RowCount is set only for
// buffered formats that know it before the envelope is written.
type Metadata struct {
	Filename    string    `json:"filename"`
	FileType    string    `json:"file_type"`
	GeneratedAt time.Time `json:"generated_at"`
	RowCount    *int      `json:"row_count,omitempty"`
	Headers     []string  `json:"headers"`
	Sheet       string    `json:"sheet,omitempty"`
	Delimiter   string    `json:"delimiter,omitempty"`
}

// GenerationError reports a failure while encoding or writing output.
type GenerationError struct {
	Format string
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generating %s output: %v", e.Format, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Write renders src to w in the format selected by opts and returns the
// number of data rows written.
func Write(w io.Writer, src RowSource, meta Metadata, opts normalize.Options) (int, error) {
	if opts.Format == normalize.FormatJSONL {
		return writeJSONL(w, src, meta, opts)
	}
	return writeJSON(w, src, meta, opts)
}

type envelope struct {
	Metadata Metadata          `json:"metadata"`
	Data     []json.RawMessage `json:"data"`
}

func writeJSON(w io.Writer, src RowSource, meta Metadata, opts normalize.Options) (int, error) {
	rows := make([]json.RawMessage, 0, 64)
	for {
		row, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		b, err := row.MarshalJSON()
		if err != nil {
			return 0, &GenerationError{Format: normalize.FormatJSON, Err: err}
		}
		rows = append(rows, b)
	}

	var doc any = rows
	if opts.IncludeMetadata {
		n := len(rows)
		meta.RowCount = &n
		doc = envelope{Metadata: meta, Data: rows}
	}

	var out []byte
	var err error
	if opts.PrettyPrint {
		out, err = json.MarshalIndent(doc, "", "  ")
	} else {
		out, err = json.Marshal(doc)
	}
	if err != nil {
		return 0, &GenerationError{Format: normalize.FormatJSON, Err: err}
	}
	out = append(out, '\n')

	if _, err := w.Write(out); err != nil {
		return 0, &GenerationError{Format: normalize.FormatJSON, Err: err}
	}
	return len(rows), nil
}

func writeJSONL(w io.Writer, src RowSource, meta Metadata, opts normalize.Options) (int, error) {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	if opts.IncludeMetadata {
		meta.RowCount = nil
		if err := enc.Encode(struct {
			Metadata Metadata `json:"metadata"`
		}{meta}); err != nil {
			return 0, &GenerationError{Format: normalize.FormatJSONL, Err: err}
		}
	}

	count := 0
	for {
		row, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, err
		}
		if err := enc.Encode(row); err != nil {
			return count, &GenerationError{Format: normalize.FormatJSONL, Err: err}
		}
		count++
	}

	if err := bw.Flush(); err != nil {
		return count, &GenerationError{Format: normalize.FormatJSONL, Err: err}
	}
	return count, nil
}

// SliceSource adapts an in-memory row slice to a RowSource. Used by tests
// and previews.
type SliceSource struct {
	Rows []normalize.Row
	pos  int
}

func (s *SliceSource) Next() (normalize.Row, error) {
	if s.pos >= len(s.Rows) {
		return normalize.Row{}, io.EOF
	}
	r := s.Rows[s.pos]
	s.pos++
	return r, nil
}
