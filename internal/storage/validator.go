package storage

// validator.go gates uploads before anything touches disk. Three independent
// checks: extension allowlist, size limit, and content sniffing of the first
// bytes so a renamed binary cannot masquerade as a CSV.

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Extensions accepted for upload.
var allowedExtensions = map[string]bool{
	".csv":  true,
	".tsv":  true,
	".xlsx": true,
}

// AllowedExtensions returns the accepted upload extensions, sorted.
func AllowedExtensions() []string {
	return []string{".csv", ".tsv", ".xlsx"}
}

// FileValidationError reports a rejected upload.
type FileValidationError struct {
	Filename string
	Reason   string
}

func (e *FileValidationError) Error() string {
	return fmt.Sprintf("invalid upload %q: %s", e.Filename, e.Reason)
}

// Validator checks uploads against the configured limits.
type Validator struct {
	// MaxSize is the largest accepted upload in bytes. Zero disables the
	// size check.
	MaxSize int64
}

// Validate checks an upload's name, declared size, and leading bytes.
// head should hold the first bytes of the file (512 is plenty for
// sniffing); pass nil to skip the content check.
func (v *Validator) Validate(filename string, size int64, head []byte) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return &FileValidationError{
			Filename: filename,
			Reason: fmt.Sprintf("unsupported extension %q (accepted: %s)",
				ext, strings.Join(AllowedExtensions(), ", ")),
		}
	}

	if size == 0 {
		return &FileValidationError{Filename: filename, Reason: "file is empty"}
	}
	if v.MaxSize > 0 && size > v.MaxSize {
		return &FileValidationError{
			Filename: filename,
			Reason:   fmt.Sprintf("file is %d bytes, limit is %d", size, v.MaxSize),
		}
	}

	if len(head) > 0 {
		if err := v.checkContent(filename, ext, head); err != nil {
			return err
		}
	}
	return nil
}

// checkContent cross-checks the sniffed MIME type against the extension.
func (v *Validator) checkContent(filename, ext string, head []byte) error {
	detected := mimetype.Detect(head)

	switch ext {
	case ".xlsx":
		// xlsx is a zip container; mimetype resolves the full OOXML type
		// when the directory is inside the sniffed window, plain zip
		// otherwise. Both are acceptable.
		if detected.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet") ||
			detected.Is("application/zip") {
			return nil
		}
		return &FileValidationError{
			Filename: filename,
			Reason:   fmt.Sprintf("content looks like %s, not a workbook", detected.String()),
		}
	default:
		// Delimited text. Anything in the text/* family passes, including
		// text/csv and text/tab-separated-values.
		for m := detected; m != nil; m = m.Parent() {
			if strings.HasPrefix(m.String(), "text/") {
				return nil
			}
		}
		return &FileValidationError{
			Filename: filename,
			Reason:   fmt.Sprintf("content looks like %s, not delimited text", detected.String()),
		}
	}
}
