package reader

// streaming.go provides the io.Reader wrappers applied to every delimited
// source before parsing:
//
//   - bomStripper: removes a leading UTF-8 BOM (0xEF 0xBB 0xBF)
//   - utf8Sanitizer: replaces invalid UTF-8 bytes with '?' on the fly
//   - CountingReader: tracks bytes consumed for progress reporting
//
// All three stream with constant memory; Wrap applies them in the required
// order (BOM first, then sanitization, then counting).

import (
	"io"
	"unicode/utf8"
)

// CountingReader wraps an io.Reader and tracks bytes read. Total is the
// source size when known, zero otherwise.
type CountingReader struct {
	r         io.Reader
	BytesRead int64
	Total     int64
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.BytesRead += int64(n)
	return n, err
}

// Progress returns read progress as a percentage, or 0 when Total is unknown.
// Clamped to 100: sanitization can shrink the stream relative to the raw
// source size, and the total may be a caller's estimate.
func (c *CountingReader) Progress() int {
	if c.Total <= 0 {
		return 0
	}
	pct := int(c.BytesRead * 100 / c.Total)
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Wrap prepares a raw source for delimited parsing: BOM stripping, UTF-8
// sanitization, byte counting.
func Wrap(r io.Reader, total int64) *CountingReader {
	return &CountingReader{
		r:     newUTF8Sanitizer(newBOMStripper(r)),
		Total: total,
	}
}

// bomStripper drops a UTF-8 BOM from the start of the stream if present.
// Windows tools routinely prepend one to CSV exports.
type bomStripper struct {
	r       io.Reader
	checked bool
	held    []byte
}

func newBOMStripper(r io.Reader) *bomStripper {
	return &bomStripper{r: r}
}

func (b *bomStripper) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		var buf [3]byte
		n, err := io.ReadFull(b.r, buf[:])
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if n == 3 && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
			// BOM consumed; fall through to a normal read.
		} else if n > 0 {
			b.held = append(b.held, buf[:n]...)
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
	}

	if len(b.held) > 0 {
		n := copy(p, b.held)
		b.held = b.held[n:]
		return n, nil
	}
	return b.r.Read(p)
}

// utf8Sanitizer replaces invalid UTF-8 bytes with '?' as data streams
// through. A single-byte replacement keeps the output no larger than the
// input, so sanitization happens in place in the caller's buffer.
type utf8Sanitizer struct {
	r io.Reader

	// pending holds a possibly incomplete multi-byte sequence carried over
	// from the previous read.
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := 0
	if len(s.pending) > 0 {
		offset = copy(p, s.pending)
		s.pending = s.pending[:0]
	}

	n, err := s.r.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	if allASCII(p[:n]) {
		return n, err
	}
	return s.sanitize(p[:n], err == io.EOF), err
}

// allASCII is the fast path; most tabular data never leaves ASCII.
func allASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

// sanitize rewrites data in place and returns the number of output bytes.
// Unless atEOF, an incomplete trailing sequence is deferred to the next read
// instead of being replaced.
func (s *utf8Sanitizer) sanitize(data []byte, atEOF bool) int {
	write := 0
	for read := 0; read < len(data); {
		r, size := utf8.DecodeRune(data[read:])

		if !atEOF && incompleteAtEnd(data[read:]) {
			s.pending = append(s.pending, data[read:]...)
			return write
		}

		if r == utf8.RuneError && size == 1 {
			data[write] = '?'
			write++
			read++
			continue
		}

		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return write
}

// incompleteAtEnd reports whether data is shorter than the sequence its
// first byte announces.
func incompleteAtEnd(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return seqLen(data[0]) > len(data)
}

// seqLen returns the UTF-8 sequence length announced by a leading byte, or 0
// for a bare continuation byte.
func seqLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}
