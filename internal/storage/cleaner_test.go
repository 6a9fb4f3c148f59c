package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCleanerSweep(t *testing.T) {
	s := newTestStore(t)

	old, err := s.Save("old.csv", "text/csv", strings.NewReader("1"))
	if err != nil {
		t.Fatal(err)
	}
	fresh, err := s.Save("fresh.csv", "text/csv", strings.NewReader("2"))
	if err != nil {
		t.Fatal(err)
	}

	// Age the first upload past the retention window.
	past := time.Now().Add(-2 * time.Hour)
	for _, p := range []string{old.Path, s.sidecarPath(old.ID)} {
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatal(err)
		}
	}

	c := NewCleaner(s, time.Hour, time.Minute)
	removed := c.Sweep()
	if removed != 2 {
		t.Errorf("removed = %d, want 2 (data file and sidecar)", removed)
	}

	if _, err := s.Lookup(old.ID); err != ErrNotFound {
		t.Errorf("expired file still present: %v", err)
	}
	if _, err := s.Lookup(fresh.ID); err != nil {
		t.Errorf("fresh file swept: %v", err)
	}
}

func TestCleanerSweepsArtifacts(t *testing.T) {
	s := newTestStore(t)

	info, err := s.Save("in.csv", "text/csv", strings.NewReader("1"))
	if err != nil {
		t.Fatal(err)
	}
	artifact := s.ArtifactPath(info.ID, "json")
	if err := os.WriteFile(artifact, []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(artifact, past, past); err != nil {
		t.Fatal(err)
	}

	c := NewCleaner(s, 30*time.Minute, time.Minute)
	if removed := c.Sweep(); removed != 1 {
		t.Errorf("removed = %d, want just the artifact", removed)
	}
	if _, err := os.Stat(artifact); !os.IsNotExist(err) {
		t.Errorf("artifact still present: %v", err)
	}

	// The upload itself is fresh and must survive.
	if _, err := os.Stat(filepath.Join(s.Dir(), info.ID.String()+".csv")); err != nil {
		t.Errorf("fresh upload swept: %v", err)
	}
}
