package convert

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bkv/matrix-normalizer/internal/generate"
	"github.com/bkv/matrix-normalizer/internal/normalize"
	"github.com/bkv/matrix-normalizer/internal/reader"
	"github.com/bkv/matrix-normalizer/internal/storage"
)

// DefaultPreviewRows is how many data rows a preview returns when the caller
// does not ask for a specific count.
const DefaultPreviewRows = 10

// MaxPreviewRows caps a preview regardless of what the caller asks for.
const MaxPreviewRows = 100

// Service runs conversions and previews against stored uploads.
type Service struct {
	files *storage.Store
}

// NewService builds a Service over the upload store.
func NewService(files *storage.Store) *Service {
	return &Service{files: files}
}

// openReader picks the reader implementation for a stored file. The caller
// owns the returned reader and must Close it.
func (s *Service) openReader(info storage.FileInfo, opts normalize.Options) (reader.RowReader, error) {
	switch info.Ext {
	case ".csv":
		f, err := os.Open(info.Path)
		if err != nil {
			return nil, err
		}
		cfg := reader.DefaultDelimitedConfig()
		cfg.TotalSize = info.Size
		r, err := reader.NewDelimited(f, cfg)
		if err != nil {
			f.Close()
			return nil, err
		}
		return r, nil
	case ".tsv":
		f, err := os.Open(info.Path)
		if err != nil {
			return nil, err
		}
		cfg := reader.DefaultDelimitedConfig()
		cfg.Delimiter = '\t'
		cfg.TotalSize = info.Size
		r, err := reader.NewDelimited(f, cfg)
		if err != nil {
			f.Close()
			return nil, err
		}
		return r, nil
	case ".xlsx":
		return reader.NewWorkbook(info.Path, opts.Sheet)
	default:
		return nil, &UnsupportedFileTypeError{Ext: info.Ext}
	}
}

// Preview is a bounded sample of a file's normalized output.
type Preview struct {
	FileID      uuid.UUID        `json:"file_id"`
	Filename    string           `json:"filename"`
	Headers     []string         `json:"headers"`
	Rows        []map[string]any `json:"rows"`
	SampledRows int              `json:"sampled_rows"`
	Truncated   bool             `json:"truncated"`
}

// Preview normalizes up to maxRows data rows of a stored file without
// producing an artifact. maxRows <= 0 uses the default; anything above the
// cap is clamped.
func (s *Service) Preview(ctx context.Context, fileID uuid.UUID, maxRows int, opts normalize.Options) (*Preview, error) {
	if maxRows <= 0 {
		maxRows = DefaultPreviewRows
	}
	if maxRows > MaxPreviewRows {
		maxRows = MaxPreviewRows
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	info, err := s.files.Lookup(fileID)
	if err != nil {
		return nil, err
	}
	r, err := s.openReader(info, opts)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	header := r.Header()
	p := &Preview{
		FileID:   fileID,
		Filename: info.OriginalName,
		Headers:  outputHeaders(header, opts),
		Rows:     make([]map[string]any, 0, maxRows),
	}

	for len(p.Rows) < maxRows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row, err := normalize.Normalize(raw, header, opts)
		if err != nil {
			return nil, err
		}
		p.Rows = append(p.Rows, row.GoMap())
	}
	p.SampledRows = len(p.Rows)

	// One more successful read means the sample is truncated.
	if _, err := r.Next(); err == nil {
		p.Truncated = true
	}
	return p, nil
}

// ProgressFunc receives conversion progress as a 0-100 percentage. It is
// called between rows, on the converting goroutine, whenever the percentage
// changes; implementations must be fast.
type ProgressFunc func(percent int)

// Run converts a stored file and writes the output to w, returning the
// number of data rows produced.
func (s *Service) Run(ctx context.Context, fileID uuid.UUID, opts normalize.Options, w io.Writer) (int, error) {
	return s.RunWithProgress(ctx, fileID, opts, w, nil)
}

// RunWithProgress is Run with a progress callback. Progress comes from the
// reader's byte position, so only sources with a known size report anything;
// workbook conversions never invoke the callback. Options must already be
// validated when the job was accepted; this validates again as a backstop.
func (s *Service) RunWithProgress(ctx context.Context, fileID uuid.UUID, opts normalize.Options, w io.Writer, progress ProgressFunc) (int, error) {
	if err := opts.Validate(); err != nil {
		return 0, err
	}

	info, err := s.files.Lookup(fileID)
	if err != nil {
		return 0, err
	}
	r, err := s.openReader(info, opts)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	meta := generate.Metadata{
		Filename:    info.OriginalName,
		FileType:    strings.TrimPrefix(info.Ext, "."),
		GeneratedAt: time.Now().UTC(),
		Headers:     outputHeaders(r.Header(), opts),
	}
	switch rr := r.(type) {
	case *reader.DelimitedReader:
		meta.Delimiter = string(rr.Delimiter())
	case *reader.WorkbookReader:
		meta.Sheet = rr.Sheet()
	}

	src := &pipelineSource{ctx: ctx, r: r, header: r.Header(), opts: opts, progress: progress}
	if rep, ok := r.(reader.ProgressReporter); ok {
		src.reporter = rep
	}
	return generate.Write(w, src, meta, opts)
}

// pipelineSource adapts a RowReader plus the normalizer into a
// generate.RowSource, checking for cancellation between rows and reporting
// reader progress when both a reporter and a callback are present.
type pipelineSource struct {
	ctx      context.Context
	r        reader.RowReader
	header   normalize.Header
	opts     normalize.Options
	reporter reader.ProgressReporter
	progress ProgressFunc
	lastPct  int
}

func (p *pipelineSource) Next() (normalize.Row, error) {
	if err := p.ctx.Err(); err != nil {
		return normalize.Row{}, err
	}
	raw, err := p.r.Next()
	if err != nil {
		return normalize.Row{}, err
	}
	if p.progress != nil && p.reporter != nil {
		if pct := p.reporter.Progress(); pct != p.lastPct {
			p.lastPct = pct
			p.progress(pct)
		}
	}
	return normalize.Normalize(raw, p.header, p.opts)
}

func outputHeaders(header normalize.Header, opts normalize.Options) []string {
	out := make([]string, len(header))
	for i, col := range header {
		out[i] = opts.OutputName(col)
	}
	return out
}
