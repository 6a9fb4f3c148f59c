package reader

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/bkv/matrix-normalizer/internal/normalize"
)

// writeWorkbook builds an .xlsx file with the given rows on the given sheet.
func writeWorkbook(t *testing.T, sheet string, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			t.Fatalf("SetSheetName: %v", err)
		}
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "test.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	return path
}

func TestWorkbookReader(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]any{
		{"name", "age"},
		{"Alice", 30},
		{"Bob", 25},
	})

	w, err := NewWorkbook(path, "")
	if err != nil {
		t.Fatalf("NewWorkbook: %v", err)
	}
	defer w.Close()

	if !reflect.DeepEqual(w.Header(), normalize.Header{"name", "age"}) {
		t.Errorf("header = %v", w.Header())
	}

	var rows [][]string
	for {
		rec, err := w.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		rows = append(rows, rec)
	}

	want := [][]string{{"Alice", "30"}, {"Bob", "25"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
}

func TestWorkbookReaderNamedSheet(t *testing.T) {
	path := writeWorkbook(t, "Data", [][]any{
		{"id"},
		{1},
	})

	w, err := NewWorkbook(path, "Data")
	if err != nil {
		t.Fatalf("NewWorkbook: %v", err)
	}
	defer w.Close()

	if w.Sheet() != "Data" {
		t.Errorf("Sheet = %q, want Data", w.Sheet())
	}
}

func TestWorkbookReaderMissingSheet(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]any{{"id"}})

	_, err := NewWorkbook(path, "Nope")
	var werr *UnsupportedWorkbookError
	if !errors.As(err, &werr) {
		t.Fatalf("err = %v, want *UnsupportedWorkbookError", err)
	}
	if werr.Sheet != "Nope" {
		t.Errorf("Sheet = %q, want Nope", werr.Sheet)
	}
}

func TestWorkbookReaderNotAWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.xlsx")
	if err := os.WriteFile(path, []byte("this is not a zip archive"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewWorkbook(path, "")
	var werr *UnsupportedWorkbookError
	if !errors.As(err, &werr) {
		t.Fatalf("err = %v, want *UnsupportedWorkbookError", err)
	}
}

func TestWorkbookReaderEmptySheet(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", nil)

	_, err := NewWorkbook(path, "")
	if !errors.Is(err, ErrEmptySource) {
		t.Fatalf("err = %v, want ErrEmptySource", err)
	}
}

func TestWorkbookReaderSkipsLeadingBlankRows(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]any{
		{""},
		{"id", "name"},
		{1, "Alice"},
	})

	w, err := NewWorkbook(path, "")
	if err != nil {
		t.Fatalf("NewWorkbook: %v", err)
	}
	defer w.Close()

	if !reflect.DeepEqual(w.Header(), normalize.Header{"id", "name"}) {
		t.Errorf("header = %v, want the first non-empty row", w.Header())
	}
}
