// Package job tracks asynchronous conversion jobs: their lifecycle, their
// persistence, and the background runner that executes them under a
// concurrency limit.
package job

import (
	"time"

	"github.com/google/uuid"

	"github.com/bkv/matrix-normalizer/internal/normalize"
)

// State is a job's lifecycle phase. Transitions only move forward:
// pending -> running -> completed | failed. Terminal states never change.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Job is one conversion request and its outcome.
type Job struct {
	ID      uuid.UUID         `json:"job_id"`
	FileID  uuid.UUID         `json:"file_id"`
	Options normalize.Options `json:"options"`
	State   State             `json:"state"`

	// Error and ErrorCode are set only for failed jobs. Error is the
	// client-facing message, not the technical error, which goes to the
	// logs.
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`

	// Progress estimates how much of the source has been consumed, 0-100.
	// Byte-based, so workbook sources stay at zero until the job finishes;
	// completed jobs always report 100.
	Progress int `json:"progress"`

	// RowCount is the number of data rows produced. Set on completion.
	RowCount int `json:"row_count,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// ArtifactPath locates the output file for completed jobs. Server-side
	// only.
	ArtifactPath string `json:"-"`
}
