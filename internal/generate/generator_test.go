package generate

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/bkv/matrix-normalizer/internal/normalize"
)

func makeRows(t *testing.T, header normalize.Header, raw [][]string) []normalize.Row {
	t.Helper()
	rows := make([]normalize.Row, 0, len(raw))
	for _, rec := range raw {
		row, err := normalize.Normalize(rec, header, normalize.DefaultOptions())
		if err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		rows = append(rows, row)
	}
	return rows
}

func TestWriteJSONBareArray(t *testing.T) {
	header := normalize.NewHeader([]string{"a", "b"})
	rows := makeRows(t, header, [][]string{{"1", "x"}, {"2", "y"}})

	var buf bytes.Buffer
	opts := normalize.DefaultOptions()
	n, err := Write(&buf, &SliceSource{Rows: rows}, Metadata{}, opts)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 2 {
		t.Errorf("n = %d, want 2", n)
	}

	want := `[{"a":1,"b":"x"},{"a":2,"b":"y"}]` + "\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestWriteJSONEnvelope(t *testing.T) {
	header := normalize.NewHeader([]string{"a"})
	rows := makeRows(t, header, [][]string{{"1"}, {"2"}, {"3"}})

	var buf bytes.Buffer
	opts := normalize.DefaultOptions()
	opts.IncludeMetadata = true
	meta := Metadata{Filename: "input.csv", FileType: "csv", Headers: []string{"a"}}

	if _, err := Write(&buf, &SliceSource{Rows: rows}, meta, opts); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var doc struct {
		Metadata struct {
			Filename string `json:"filename"`
			FileType string `json:"file_type"`
			RowCount int    `json:"row_count"`
		} `json:"metadata"`
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if doc.Metadata.Filename != "input.csv" || doc.Metadata.FileType != "csv" {
		t.Errorf("metadata = %+v", doc.Metadata)
	}
	if doc.Metadata.RowCount != 3 {
		t.Errorf("row_count = %d, want 3", doc.Metadata.RowCount)
	}
	if len(doc.Data) != 3 {
		t.Errorf("data rows = %d, want 3", len(doc.Data))
	}
}

func TestWriteJSONPretty(t *testing.T) {
	header := normalize.NewHeader([]string{"a"})
	rows := makeRows(t, header, [][]string{{"1"}})

	var compact, pretty bytes.Buffer
	opts := normalize.DefaultOptions()
	if _, err := Write(&compact, &SliceSource{Rows: rows}, Metadata{}, opts); err != nil {
		t.Fatal(err)
	}
	opts.PrettyPrint = true
	if _, err := Write(&pretty, &SliceSource{Rows: rows}, Metadata{}, opts); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(pretty.String(), "\n  ") {
		t.Error("pretty output is not indented")
	}
	var a, b any
	if err := json.Unmarshal(compact.Bytes(), &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(pretty.Bytes(), &b); err != nil {
		t.Fatal(err)
	}
}

func TestWriteJSONLFraming(t *testing.T) {
	header := normalize.NewHeader([]string{"a", "b"})
	rows := makeRows(t, header, [][]string{{"1", "x"}, {"2", "y"}})

	var buf bytes.Buffer
	opts := normalize.DefaultOptions()
	opts.Format = normalize.FormatJSONL
	n, err := Write(&buf, &SliceSource{Rows: rows}, Metadata{}, opts)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 2 {
		t.Errorf("n = %d, want 2", n)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2:\n%s", len(lines), buf.String())
	}
	for i, line := range lines {
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			t.Errorf("line %d is not a standalone JSON object: %v", i+1, err)
		}
	}
}

func TestWriteJSONLMetadataFirstLine(t *testing.T) {
	header := normalize.NewHeader([]string{"a"})
	rows := makeRows(t, header, [][]string{{"1"}})

	var buf bytes.Buffer
	opts := normalize.DefaultOptions()
	opts.Format = normalize.FormatJSONL
	opts.IncludeMetadata = true
	meta := Metadata{Filename: "in.csv", FileType: "csv", Headers: []string{"a"}}

	if _, err := Write(&buf, &SliceSource{Rows: rows}, meta, opts); err != nil {
		t.Fatalf("Write: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want metadata line plus one row", len(lines))
	}

	var first struct {
		Metadata *Metadata `json:"metadata"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("metadata line: %v", err)
	}
	if first.Metadata == nil || first.Metadata.Filename != "in.csv" {
		t.Errorf("metadata line = %s", lines[0])
	}
	if first.Metadata != nil && first.Metadata.RowCount != nil {
		t.Error("jsonl metadata must not carry a row count")
	}
}

func TestWriteJSONEmptySource(t *testing.T) {
	var buf bytes.Buffer
	n, err := Write(&buf, &SliceSource{}, Metadata{}, normalize.DefaultOptions())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 0 {
		t.Errorf("n = %d, want 0", n)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("output = %q, want empty array", got)
	}
}

func TestContentType(t *testing.T) {
	if got := ContentType(normalize.FormatJSON); got != "application/json" {
		t.Errorf("json content type = %q", got)
	}
	if got := ContentType(normalize.FormatJSONL); got != "application/jsonl" {
		t.Errorf("jsonl content type = %q", got)
	}
}
