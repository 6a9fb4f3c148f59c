package job

// pgstore.go is the Postgres-backed Store for deployments that need job
// status to survive restarts. The terminal-state guard is enforced in SQL:
// updates only match rows whose state is still mutable, so two runners
// racing on the same job cannot both win.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const jobsSchema = `
CREATE TABLE IF NOT EXISTS conversion_jobs (
	id            UUID PRIMARY KEY,
	file_id       UUID NOT NULL,
	options       JSONB NOT NULL,
	state         TEXT NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	error_code    TEXT NOT NULL DEFAULT '',
	progress      INTEGER NOT NULL DEFAULT 0,
	row_count     INTEGER NOT NULL DEFAULT 0,
	artifact_path TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	started_at    TIMESTAMPTZ,
	finished_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS conversion_jobs_finished_idx
	ON conversion_jobs (finished_at)
	WHERE state IN ('completed', 'failed');
`

// PGStore persists jobs in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps an existing connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// EnsureSchema creates the jobs table and its index if missing.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, jobsSchema); err != nil {
		return fmt.Errorf("ensure conversion_jobs schema: %w", err)
	}
	return nil
}

func (s *PGStore) Create(ctx context.Context, j Job) error {
	opts, err := json.Marshal(j.Options)
	if err != nil {
		return fmt.Errorf("encode job options: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO conversion_jobs
			(id, file_id, options, state, error, error_code, progress,
			 row_count, artifact_path, created_at, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		j.ID, j.FileID, opts, string(j.State), j.Error, j.ErrorCode,
		j.Progress, j.RowCount, j.ArtifactPath, j.CreatedAt,
		toTimestamptz(j.StartedAt), toTimestamptz(j.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, file_id, options, state, error, error_code, progress,
		       row_count, artifact_path, created_at, started_at, finished_at
		FROM conversion_jobs WHERE id = $1`, id)
	return scanJob(row)
}

func (s *PGStore) Update(ctx context.Context, j Job) error {
	opts, err := json.Marshal(j.Options)
	if err != nil {
		return fmt.Errorf("encode job options: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE conversion_jobs SET
			options = $2, state = $3, error = $4, error_code = $5,
			progress = $6, row_count = $7, artifact_path = $8,
			started_at = $9, finished_at = $10
		WHERE id = $1 AND state NOT IN ('completed', 'failed')`,
		j.ID, opts, string(j.State), j.Error, j.ErrorCode,
		j.Progress, j.RowCount, j.ArtifactPath,
		toTimestamptz(j.StartedAt), toTimestamptz(j.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, gerr := s.Get(ctx, j.ID); gerr != nil {
			return gerr
		}
		return ErrTerminalState
	}
	return nil
}

func (s *PGStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM conversion_jobs
		WHERE state IN ('completed', 'failed') AND finished_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanJob(row pgx.Row) (Job, error) {
	var (
		j        Job
		state    string
		opts     []byte
		started  pgtype.Timestamptz
		finished pgtype.Timestamptz
	)
	err := row.Scan(&j.ID, &j.FileID, &opts, &state, &j.Error, &j.ErrorCode,
		&j.Progress, &j.RowCount, &j.ArtifactPath, &j.CreatedAt, &started, &finished)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("scan job: %w", err)
	}

	j.State = State(state)
	if err := json.Unmarshal(opts, &j.Options); err != nil {
		return Job{}, fmt.Errorf("decode job options: %w", err)
	}
	if started.Valid {
		t := started.Time
		j.StartedAt = &t
	}
	if finished.Valid {
		t := finished.Time
		j.FinishedAt = &t
	}
	return j, nil
}

func toTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}
