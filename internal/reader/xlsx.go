package reader

// xlsx.go reads Excel workbooks through excelize's streaming row iterator,
// so large sheets are never materialized. Cell values arrive already
// formatted as strings; type inference treats them the same as CSV cells.

import (
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/bkv/matrix-normalizer/internal/normalize"
)

// WorkbookReader streams data rows from one sheet of an .xlsx workbook.
type WorkbookReader struct {
	file   *excelize.File
	rows   *excelize.Rows
	header normalize.Header
	sheet  string
}

// NewWorkbook opens the workbook at path and positions the reader after the
// header row of the chosen sheet. An empty sheet name selects the first
// sheet; a name that does not exist is an UnsupportedWorkbookError.
func NewWorkbook(path, sheet string) (*WorkbookReader, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &UnsupportedWorkbookError{Path: path, Err: err}
	}

	name := sheet
	if name == "" {
		name = f.GetSheetName(0)
	} else if idx, ierr := f.GetSheetIndex(name); ierr != nil || idx < 0 {
		f.Close()
		return nil, &UnsupportedWorkbookError{Path: path, Sheet: name}
	}

	rows, err := f.Rows(name)
	if err != nil {
		f.Close()
		return nil, &UnsupportedWorkbookError{Path: path, Err: err}
	}

	w := &WorkbookReader{file: f, rows: rows, sheet: name}

	// First non-empty row is the header.
	for {
		if !rows.Next() {
			w.Close()
			if err := rows.Error(); err != nil {
				return nil, err
			}
			return nil, ErrEmptySource
		}
		cells, err := rows.Columns()
		if err != nil {
			w.Close()
			return nil, err
		}
		if emptyRow(cells) {
			continue
		}
		w.header = normalize.NewHeader(cells)
		break
	}

	return w, nil
}

// Header returns the cleaned output header.
func (w *WorkbookReader) Header() normalize.Header { return w.header }

// Sheet returns the sheet name being read.
func (w *WorkbookReader) Sheet() string { return w.sheet }

// Next returns the next non-empty data row, or io.EOF at the end of the
// sheet.
func (w *WorkbookReader) Next() ([]string, error) {
	for {
		if !w.rows.Next() {
			if err := w.rows.Error(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		cells, err := w.rows.Columns()
		if err != nil {
			return nil, err
		}
		if emptyRow(cells) {
			continue
		}
		return cells, nil
	}
}

// Close releases the row iterator and the workbook.
func (w *WorkbookReader) Close() error {
	rerr := w.rows.Close()
	ferr := w.file.Close()
	if rerr != nil {
		return rerr
	}
	return ferr
}
