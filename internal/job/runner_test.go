package job

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bkv/matrix-normalizer/internal/convert"
	"github.com/bkv/matrix-normalizer/internal/normalize"
	"github.com/bkv/matrix-normalizer/internal/storage"
)

func newTestRunner(t *testing.T, maxConcurrent int) (*Runner, *storage.Store) {
	t.Helper()
	files, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	svc := convert.NewService(files)
	r := NewRunner(svc, files, NewMemoryStore(), NewLimiter(maxConcurrent), time.Minute)
	return r, files
}

func waitTerminal(t *testing.T, r *Runner, id uuid.UUID) Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		j, err := r.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if j.State.Terminal() {
			return j
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return Job{}
}

func TestRunnerEndToEnd(t *testing.T) {
	r, files := newTestRunner(t, 2)
	info, err := files.Save("in.csv", "text/csv", strings.NewReader("a,b\n1,x\n2,y\n"))
	if err != nil {
		t.Fatal(err)
	}

	j, err := r.Start(context.Background(), info.ID, normalize.DefaultOptions())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if j.State != StatePending {
		t.Errorf("initial state = %s, want pending", j.State)
	}

	done := waitTerminal(t, r, j.ID)
	if done.State != StateCompleted {
		t.Fatalf("state = %s (%s), want completed", done.State, done.Error)
	}
	if done.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", done.RowCount)
	}
	if done.StartedAt == nil || done.FinishedAt == nil {
		t.Error("timestamps not recorded")
	}
	if done.Progress != 100 {
		t.Errorf("Progress = %d, want 100", done.Progress)
	}

	art, err := r.Artifact(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("Artifact: %v", err)
	}
	b, err := os.ReadFile(art.ArtifactPath)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(b, &rows); err != nil {
		t.Fatalf("artifact is not valid JSON: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("artifact rows = %d, want 2", len(rows))
	}

	// No temp file left behind.
	if _, err := os.Stat(art.ArtifactPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp artifact not cleaned up")
	}
}

func TestRunnerNoTimeout(t *testing.T) {
	files, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	// Zero timeout disables the watchdog; jobs still run and complete.
	r := NewRunner(convert.NewService(files), files, NewMemoryStore(), NewLimiter(1), 0)

	info, err := files.Save("in.csv", "text/csv", strings.NewReader("a\n1\n"))
	if err != nil {
		t.Fatal(err)
	}
	j, err := r.Start(context.Background(), info.ID, normalize.DefaultOptions())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	done := waitTerminal(t, r, j.ID)
	if done.State != StateCompleted {
		t.Fatalf("state = %s (%s), want completed", done.State, done.Error)
	}
}

func TestRunnerFailedJob(t *testing.T) {
	r, files := newTestRunner(t, 1)
	// Whitespace only: no header row, so the reader rejects the source.
	info, err := files.Save("empty.csv", "text/csv", strings.NewReader("   \n"))
	if err != nil {
		t.Fatal(err)
	}

	j, err := r.Start(context.Background(), info.ID, normalize.DefaultOptions())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := waitTerminal(t, r, j.ID)
	if done.State != StateFailed {
		t.Fatalf("state = %s, want failed", done.State)
	}
	if done.ErrorCode != "FILE002" {
		t.Errorf("ErrorCode = %q, want FILE002", done.ErrorCode)
	}
	if done.Error == "" {
		t.Error("failed job has no message")
	}

	if _, err := r.Artifact(context.Background(), j.ID); err == nil {
		t.Error("Artifact succeeded for a failed job")
	}
}

func TestRunnerUnknownFile(t *testing.T) {
	r, _ := newTestRunner(t, 1)
	_, err := r.Start(context.Background(), uuid.New(), normalize.DefaultOptions())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if r.limiter.Active() != 0 {
		t.Error("limiter slot leaked on rejected start")
	}
}

func TestRunnerInvalidOptions(t *testing.T) {
	r, files := newTestRunner(t, 1)
	info, err := files.Save("in.csv", "text/csv", strings.NewReader("a\n1\n"))
	if err != nil {
		t.Fatal(err)
	}

	opts := normalize.DefaultOptions()
	opts.Format = normalize.FormatJSONL
	opts.PrettyPrint = true
	_, err = r.Start(context.Background(), info.ID, opts)
	var verr *normalize.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("err = %v, want *ValidationError", err)
	}
}

func TestRunnerBackpressure(t *testing.T) {
	r, files := newTestRunner(t, 1)
	info, err := files.Save("in.csv", "text/csv", strings.NewReader("a\n1\n"))
	if err != nil {
		t.Fatal(err)
	}

	// Hold the only slot so Start has nowhere to go.
	if !r.limiter.TryAcquire() {
		t.Fatal("acquire failed")
	}
	_, err = r.Start(context.Background(), info.ID, normalize.DefaultOptions())
	if !errors.Is(err, convert.ErrTooManyConversions) {
		t.Errorf("err = %v, want ErrTooManyConversions", err)
	}
	r.limiter.Release()
}

func TestRunnerArtifactNotReady(t *testing.T) {
	r, _ := newTestRunner(t, 1)
	ctx := context.Background()

	j := Job{ID: uuid.New(), State: StateRunning, CreatedAt: time.Now()}
	if err := r.store.Create(ctx, j); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Artifact(ctx, j.ID); !errors.Is(err, ErrNotReady) {
		t.Errorf("err = %v, want ErrNotReady", err)
	}
}

func TestRunnerJSONLArtifactName(t *testing.T) {
	r, files := newTestRunner(t, 1)
	info, err := files.Save("in.csv", "text/csv", strings.NewReader("a\n1\n"))
	if err != nil {
		t.Fatal(err)
	}

	opts := normalize.DefaultOptions()
	opts.Format = normalize.FormatJSONL
	j, err := r.Start(context.Background(), info.ID, opts)
	if err != nil {
		t.Fatal(err)
	}
	done := waitTerminal(t, r, j.ID)
	if done.State != StateCompleted {
		t.Fatalf("state = %s (%s)", done.State, done.Error)
	}
	if !strings.HasSuffix(done.ArtifactPath, "_converted.jsonl") {
		t.Errorf("ArtifactPath = %q, want _converted.jsonl suffix", done.ArtifactPath)
	}
}
