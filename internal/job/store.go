package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no job matches the given ID.
var ErrNotFound = errors.New("job not found")

// ErrTerminalState is returned by Update when the stored job is already
// completed or failed. Terminal jobs are immutable.
var ErrTerminalState = errors.New("job is in a terminal state")

// Store persists jobs. Implementations must enforce that a job in a terminal
// state is never updated again.
type Store interface {
	Create(ctx context.Context, j Job) error
	Get(ctx context.Context, id uuid.UUID) (Job, error)
	Update(ctx context.Context, j Job) error

	// Prune removes terminal jobs that finished before the cutoff and
	// returns how many were removed.
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

// MemoryStore is the in-process Store used when no database is configured.
// Jobs do not survive a restart.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]Job
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[uuid.UUID]Job)}
}

func (s *MemoryStore) Create(ctx context.Context, j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return j, nil
}

func (s *MemoryStore) Update(ctx context.Context, j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.jobs[j.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.State.Terminal() {
		return ErrTerminalState
	}
	s.jobs[j.ID] = j
	return nil
}

func (s *MemoryStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, j := range s.jobs {
		if j.State.Terminal() && j.FinishedAt != nil && j.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed, nil
}
