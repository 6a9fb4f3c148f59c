package job

// runner.go executes conversions in the background. Start admits a job under
// the concurrency limit, records it as pending, and hands it to a goroutine;
// clients poll the store for status. The artifact is written to a temp file
// and renamed on success, so a download can never observe partial output.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/bkv/matrix-normalizer/internal/convert"
	"github.com/bkv/matrix-normalizer/internal/normalize"
	"github.com/bkv/matrix-normalizer/internal/storage"
)

// ErrNotReady is returned when an artifact is requested for a job that has
// not completed.
var ErrNotReady = errors.New("job has not completed")

// Runner starts and tracks conversion jobs.
type Runner struct {
	svc     *convert.Service
	files   *storage.Store
	store   Store
	limiter *Limiter
	timeout time.Duration
}

// NewRunner wires a runner. The timeout is a watchdog on each conversion;
// zero or negative disables it and jobs run until they finish or the process
// shuts down.
func NewRunner(svc *convert.Service, files *storage.Store, store Store, limiter *Limiter, timeout time.Duration) *Runner {
	return &Runner{svc: svc, files: files, store: store, limiter: limiter, timeout: timeout}
}

// Start validates the request, admits it under the concurrency limit, and
// launches the conversion in the background. The returned job is in
// StatePending; poll Status for progress.
func (r *Runner) Start(ctx context.Context, fileID uuid.UUID, opts normalize.Options) (Job, error) {
	if err := opts.Validate(); err != nil {
		return Job{}, err
	}
	// Fail fast on unknown files instead of surfacing it via a failed job.
	if _, err := r.files.Lookup(fileID); err != nil {
		return Job{}, err
	}

	if !r.limiter.TryAcquire() {
		return Job{}, convert.ErrTooManyConversions
	}

	j := Job{
		ID:        uuid.New(),
		FileID:    fileID,
		Options:   opts,
		State:     StatePending,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.Create(ctx, j); err != nil {
		r.limiter.Release()
		return Job{}, err
	}

	// The job outlives the request, so it never runs on the request context.
	// The watchdog timeout applies only when configured.
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if r.timeout > 0 {
		runCtx, cancel = context.WithTimeout(context.Background(), r.timeout)
	} else {
		runCtx, cancel = context.WithCancel(context.Background())
	}

	go func() {
		defer cancel()
		defer r.limiter.Release()
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic in conversion job",
					"job_id", j.ID,
					"file_id", j.FileID,
					"panic", rec,
				)
				r.fail(j, fmt.Errorf("internal error: %v", rec))
			}
		}()
		r.run(runCtx, j)
	}()

	return j, nil
}

func (r *Runner) run(ctx context.Context, j Job) {
	start := time.Now().UTC()
	j.State = StateRunning
	j.StartedAt = &start
	if err := r.store.Update(ctx, j); err != nil {
		slog.Error("could not mark job running", "job_id", j.ID, "error", err)
		return
	}

	artifact := r.files.ArtifactPath(j.ID, j.Options.Format)
	tmp := artifact + ".tmp"

	out, err := os.Create(tmp)
	if err != nil {
		r.fail(j, err)
		return
	}

	rows, err := r.svc.RunWithProgress(ctx, j.FileID, j.Options, out, func(pct int) {
		j.Progress = pct
		if uerr := r.store.Update(ctx, j); uerr != nil {
			slog.Debug("could not record job progress", "job_id", j.ID, "error", uerr)
		}
	})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		r.fail(j, err)
		return
	}
	if err := os.Rename(tmp, artifact); err != nil {
		os.Remove(tmp)
		r.fail(j, err)
		return
	}

	now := time.Now().UTC()
	j.State = StateCompleted
	j.Progress = 100
	j.RowCount = rows
	j.ArtifactPath = artifact
	j.FinishedAt = &now
	if err := r.store.Update(context.Background(), j); err != nil {
		slog.Error("could not mark job completed", "job_id", j.ID, "error", err)
		return
	}

	slog.Info("conversion completed",
		"job_id", j.ID,
		"file_id", j.FileID,
		"format", j.Options.Format,
		"rows", rows,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// fail records the terminal failed state with the client-facing message.
func (r *Runner) fail(j Job, cause error) {
	slog.Error("conversion failed", "job_id", j.ID, "file_id", j.FileID, "error", cause)

	msg := convert.MapError(cause)
	now := time.Now().UTC()
	j.State = StateFailed
	j.Error = msg.Message
	j.ErrorCode = msg.Code
	j.FinishedAt = &now
	if err := r.store.Update(context.Background(), j); err != nil {
		slog.Error("could not mark job failed", "job_id", j.ID, "error", err)
	}
}

// Status returns the job's current state.
func (r *Runner) Status(ctx context.Context, id uuid.UUID) (Job, error) {
	return r.store.Get(ctx, id)
}

// Artifact returns a completed job and the path of its output. Pending and
// running jobs return ErrNotReady; failed jobs return their recorded error.
func (r *Runner) Artifact(ctx context.Context, id uuid.UUID) (Job, error) {
	j, err := r.store.Get(ctx, id)
	if err != nil {
		return Job{}, err
	}
	switch j.State {
	case StateCompleted:
		return j, nil
	case StateFailed:
		return Job{}, fmt.Errorf("job failed: %s", j.Error)
	default:
		return Job{}, ErrNotReady
	}
}

// Drain waits for in-flight conversions to finish, bounded by ctx.
func (r *Runner) Drain(ctx context.Context) error {
	return r.limiter.WaitForDrain(ctx)
}

// PruneLoop periodically drops terminal jobs older than retention. Runs
// until the context is cancelled; intended for its own goroutine.
func (r *Runner) PruneLoop(ctx context.Context, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.store.Prune(ctx, time.Now().Add(-retention))
			if err != nil {
				slog.Error("job prune failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("pruned finished jobs", "removed", n)
			}
		}
	}
}
