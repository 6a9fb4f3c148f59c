package reader

// delimited.go reads CSV and friends. The delimiter is auto-detected from a
// sample of the stream unless the caller pins one, and parsing is deliberately
// permissive: LazyQuotes on, variable record widths allowed. Structural
// enforcement happens via MaxSkew, not the csv package, so a ragged row can
// still be padded downstream instead of aborting the whole conversion.

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"

	"github.com/bkv/matrix-normalizer/internal/normalize"
)

// Candidate delimiters, in tie-break order.
var candidateDelimiters = []rune{',', ';', '\t', '|'}

// detectSampleSize bounds how much of the stream detection may look at.
const detectSampleSize = 8 * 1024

// maxDetectLines bounds how many sample lines detection examines.
const maxDetectLines = 16

// DelimitedConfig configures a DelimitedReader.
type DelimitedConfig struct {
	// Delimiter pins the field separator. Zero means auto-detect.
	Delimiter rune

	// MaxSkew is the tolerated difference between a record's field count
	// and the header width before the record is rejected as malformed.
	// Negative disables the check entirely.
	MaxSkew int

	// TotalSize is the source size in bytes, used for progress estimates.
	// Zero means unknown and Progress reports zero.
	TotalSize int64
}

// DefaultDelimitedConfig auto-detects the delimiter and disables the skew
// check, letting the normalizer pad or truncate ragged rows.
func DefaultDelimitedConfig() DelimitedConfig {
	return DelimitedConfig{MaxSkew: -1}
}

// DelimitedReader streams data rows from a delimited text source.
type DelimitedReader struct {
	csv     *csv.Reader
	header  normalize.Header
	width   int
	maxSkew int
	line    int
	closer  io.Closer
	delim   rune
	counter *CountingReader
}

// NewDelimited builds a reader over r. The stream is BOM-stripped and UTF-8
// sanitized; the first non-empty record becomes the header. If r implements
// io.Closer it is closed by Close.
func NewDelimited(r io.Reader, cfg DelimitedConfig) (*DelimitedReader, error) {
	closer, _ := r.(io.Closer)
	counter := Wrap(r, cfg.TotalSize)
	buffered := bufio.NewReaderSize(counter, detectSampleSize)

	delim := cfg.Delimiter
	if delim == 0 {
		sample, _ := buffered.Peek(detectSampleSize)
		delim = DetectDelimiter(sample)
	}

	cr := csv.NewReader(buffered)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	d := &DelimitedReader{
		csv:     cr,
		maxSkew: cfg.MaxSkew,
		closer:  closer,
		delim:   delim,
		counter: counter,
	}

	// First non-empty record is the header.
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil, ErrEmptySource
		}
		if err != nil {
			return nil, err
		}
		d.line++
		if emptyRow(rec) {
			continue
		}
		d.header = normalize.NewHeader(rec)
		d.width = len(rec)
		break
	}

	return d, nil
}

// Header returns the cleaned output header.
func (d *DelimitedReader) Header() normalize.Header { return d.header }

// Delimiter returns the separator in use, detected or pinned.
func (d *DelimitedReader) Delimiter() rune { return d.delim }

// Progress estimates how much of the source has been consumed, 0-100. The
// estimate runs slightly ahead of parsing because of read buffering; an
// unknown TotalSize reports zero.
func (d *DelimitedReader) Progress() int { return d.counter.Progress() }

// Next returns the next non-empty data row, or io.EOF.
func (d *DelimitedReader) Next() ([]string, error) {
	for {
		rec, err := d.csv.Read()
		if err != nil {
			return nil, err
		}
		d.line++
		if emptyRow(rec) {
			continue
		}
		if d.maxSkew >= 0 {
			skew := len(rec) - d.width
			if skew < 0 {
				skew = -skew
			}
			if skew > d.maxSkew {
				return nil, &MalformedRecordError{Line: d.line, Want: d.width, Got: len(rec)}
			}
		}
		return rec, nil
	}
}

// Close closes the underlying source when it is closable.
func (d *DelimitedReader) Close() error {
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}

// DetectDelimiter picks the most plausible separator from a sample of the
// source. Each candidate is scored by how many sample lines repeat the first
// line's field count; the candidate that splits the most lines consistently
// wins. A header whose text happens to contain another candidate cannot
// outvote the separator the data rows agree on. Ties and a candidate-free
// sample fall back to the comma.
func DetectDelimiter(sample []byte) rune {
	lines := sampleLines(sample)

	best := ','
	bestScore := 0
	for _, cand := range candidateDelimiters {
		if score := consistencyScore(lines, cand); score > bestScore {
			best = cand
			bestScore = score
		}
	}
	return best
}

// sampleLines splits the sample into the lines detection may examine. A
// trailing fragment cut off by the sample window is dropped when complete
// lines precede it; blank lines are skipped.
func sampleLines(sample []byte) [][]byte {
	raw := bytes.Split(sample, []byte{'\n'})
	terminated := len(sample) > 0 && sample[len(sample)-1] == '\n'
	if !terminated && len(raw) > 1 {
		raw = raw[:len(raw)-1]
	}

	var lines [][]byte
	for _, line := range raw {
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		lines = append(lines, line)
		if len(lines) == maxDetectLines {
			break
		}
	}
	return lines
}

// consistencyScore counts the sample lines whose separator count matches the
// first line's. A candidate absent from the first line scores zero.
func consistencyScore(lines [][]byte, cand rune) int {
	if len(lines) == 0 {
		return 0
	}
	want := countOutsideQuotes(lines[0], cand)
	if want == 0 {
		return 0
	}
	score := 0
	for _, line := range lines {
		if countOutsideQuotes(line, cand) == want {
			score++
		}
	}
	return score
}

// countOutsideQuotes counts occurrences of sep that are not inside a
// double-quoted field, so quoted commas do not skew detection.
func countOutsideQuotes(line []byte, sep rune) int {
	count := 0
	inQuotes := false
	for _, b := range line {
		switch {
		case b == '"':
			inQuotes = !inQuotes
		case rune(b) == sep && !inQuotes:
			count++
		}
	}
	return count
}
