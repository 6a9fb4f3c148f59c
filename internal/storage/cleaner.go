package storage

// cleaner.go sweeps expired files out of the storage directory. Uploads,
// sidecars, and job artifacts all age out on the same retention clock, keyed
// on filesystem modification time. The sweep is best effort: a file that
// cannot be removed is logged and retried on the next cycle.

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Cleaner periodically removes files older than the retention window.
type Cleaner struct {
	store     *Store
	retention time.Duration
	interval  time.Duration
}

// NewCleaner builds a cleaner over the store. retention is how long files
// live; interval is how often the sweep runs.
func NewCleaner(store *Store, retention, interval time.Duration) *Cleaner {
	return &Cleaner{store: store, retention: retention, interval: interval}
}

// Run sweeps immediately, then on every tick until the context is cancelled.
// Intended to run in its own goroutine.
func (c *Cleaner) Run(ctx context.Context) {
	slog.Info("storage cleaner started",
		"retention", c.retention.String(),
		"interval", c.interval.String(),
	)

	c.sweep()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("storage cleaner stopped")
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// Sweep removes every file in the store older than the retention window and
// returns how many were removed.
func (c *Cleaner) Sweep() int { return c.sweep() }

func (c *Cleaner) sweep() int {
	start := time.Now()
	cutoff := start.Add(-c.retention)

	entries, err := os.ReadDir(c.store.Dir())
	if err != nil {
		slog.Error("storage sweep failed", "error", err)
		return 0
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		if fi.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(c.store.Dir(), e.Name())
		if err := os.Remove(path); err != nil {
			slog.Warn("could not remove expired file", "path", path, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		slog.Info("storage sweep completed",
			"removed", removed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return removed
}
