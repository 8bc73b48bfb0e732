package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const jobColumns = `id, queue, name, data, priority, seq, state, attempts, max_attempts, progress,
    return_value, failed_reason, repeat_key, created_at, started_at, finished_at`

const saveJobQuery = `
INSERT INTO sync_jobs (` + jobColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (id) DO UPDATE SET
    state         = EXCLUDED.state,
    attempts      = EXCLUDED.attempts,
    progress      = EXCLUDED.progress,
    return_value  = EXCLUDED.return_value,
    failed_reason = EXCLUDED.failed_reason,
    started_at    = EXCLUDED.started_at,
    finished_at   = EXCLUDED.finished_at`

const getJobQuery = `SELECT ` + jobColumns + ` FROM sync_jobs WHERE id = $1`

// Concurrent claimers skip rows locked by each other.
const claimJobQuery = `
UPDATE sync_jobs SET state = 'active', started_at = $2
WHERE id = (
    SELECT id FROM sync_jobs
    WHERE queue = $1 AND state = 'waiting'
    ORDER BY priority, seq
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + jobColumns

const listJobsQuery = `
SELECT ` + jobColumns + ` FROM sync_jobs
WHERE queue = $1 AND state = $2
ORDER BY priority, seq`

const countJobsQuery = `SELECT state, count(*) FROM sync_jobs WHERE queue = $1 GROUP BY state`

const cleanJobsQuery = `
DELETE FROM sync_jobs
WHERE queue = $1 AND state = $2 AND finished_at < $3`

const trimJobsQuery = `
DELETE FROM sync_jobs WHERE id IN (
    SELECT id FROM sync_jobs
    WHERE queue = $1 AND state = $2
    ORDER BY finished_at DESC NULLS LAST, seq DESC
    OFFSET $3
)`

const saveRepeatableQuery = `
INSERT INTO sync_repeatables (queue, key, name, every_ms, data, priority, next_run_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (queue, key) DO UPDATE SET
    name        = EXCLUDED.name,
    every_ms    = EXCLUDED.every_ms,
    data        = EXCLUDED.data,
    priority    = EXCLUDED.priority,
    next_run_at = EXCLUDED.next_run_at`

const deleteRepeatableQuery = `DELETE FROM sync_repeatables WHERE queue = $1 AND key = $2`

const listRepeatablesQuery = `
SELECT queue, key, name, every_ms, data, priority, next_run_at, created_at
FROM sync_repeatables
WHERE queue = $1
ORDER BY key`

// DB is the subset of pgx used by PostgresJobStore. *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresJobStore is a JobStore backed by the sync_jobs and
// sync_repeatables tables.
type PostgresJobStore struct {
	db DB
}

var _ JobStore = (*PostgresJobStore)(nil)

// NewPostgresJobStore returns a job store using db.
func NewPostgresJobStore(db DB) *PostgresJobStore {
	return &PostgresJobStore{db: db}
}

// Save implements JobStore.
func (s *PostgresJobStore) Save(ctx context.Context, j *Job) error {
	data := j.Data
	if len(data) == 0 {
		data = []byte("{}")
	}
	_, err := s.db.Exec(ctx, saveJobQuery,
		j.ID, j.Queue, j.Name, []byte(data), j.Priority, j.Seq, string(j.State), j.Attempts, j.MaxAttempts,
		j.Progress, nullableJSON(j.ReturnValue), j.FailedReason, j.RepeatKey, j.CreatedAt, j.StartedAt, j.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save job %s: %w", j.ID, err)
	}
	return nil
}

// Get implements JobStore.
func (s *PostgresJobStore) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	job, err := scanJob(s.db.QueryRow(ctx, getJobQuery, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return job, nil
}

// Claim implements JobStore.
func (s *PostgresJobStore) Claim(ctx context.Context, queue string, now time.Time) (*Job, error) {
	job, err := scanJob(s.db.QueryRow(ctx, claimJobQuery, queue, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job in %s: %w", queue, err)
	}
	return job, nil
}

// List implements JobStore.
func (s *PostgresJobStore) List(ctx context.Context, queue string, state State) ([]*Job, error) {
	rows, err := s.db.Query(ctx, listJobsQuery, queue, string(state))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s jobs in %s: %w", state, queue, err)
	}
	jobs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Job, error) {
		return scanJob(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s jobs in %s: %w", state, queue, err)
	}
	return jobs, nil
}

// Counts implements JobStore.
func (s *PostgresJobStore) Counts(ctx context.Context, queue string) (Counts, error) {
	rows, err := s.db.Query(ctx, countJobsQuery, queue)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to count jobs in %s: %w", queue, err)
	}
	defer rows.Close()

	var c Counts
	for rows.Next() {
		var (
			state string
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return Counts{}, fmt.Errorf("failed to count jobs in %s: %w", queue, err)
		}
		switch State(state) {
		case StateWaiting:
			c.Waiting = n
		case StateActive:
			c.Active = n
		case StateCompleted:
			c.Completed = n
		case StateFailed:
			c.Failed = n
		}
	}
	if err := rows.Err(); err != nil {
		return Counts{}, fmt.Errorf("failed to count jobs in %s: %w", queue, err)
	}
	return c, nil
}

// Clean implements JobStore.
func (s *PostgresJobStore) Clean(ctx context.Context, queue string, state State, before time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, cleanJobsQuery, queue, string(state), before)
	if err != nil {
		return 0, fmt.Errorf("failed to clean %s jobs in %s: %w", state, queue, err)
	}
	return int(tag.RowsAffected()), nil
}

// Trim implements JobStore.
func (s *PostgresJobStore) Trim(ctx context.Context, queue string, state State, keep int) (int, error) {
	tag, err := s.db.Exec(ctx, trimJobsQuery, queue, string(state), keep)
	if err != nil {
		return 0, fmt.Errorf("failed to trim %s jobs in %s: %w", state, queue, err)
	}
	return int(tag.RowsAffected()), nil
}

// SaveRepeatable implements JobStore.
func (s *PostgresJobStore) SaveRepeatable(ctx context.Context, r *Repeatable) error {
	data := r.Data
	if len(data) == 0 {
		data = []byte("{}")
	}
	_, err := s.db.Exec(ctx, saveRepeatableQuery,
		r.Queue, r.Key, r.Name, r.Every.Milliseconds(), []byte(data), r.Priority, r.NextRunAt, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save repeatable %s: %w", r.Key, err)
	}
	return nil
}

// DeleteRepeatable implements JobStore.
func (s *PostgresJobStore) DeleteRepeatable(ctx context.Context, queue, key string) (bool, error) {
	tag, err := s.db.Exec(ctx, deleteRepeatableQuery, queue, key)
	if err != nil {
		return false, fmt.Errorf("failed to delete repeatable %s: %w", key, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Repeatables implements JobStore.
func (s *PostgresJobStore) Repeatables(ctx context.Context, queue string) ([]*Repeatable, error) {
	rows, err := s.db.Query(ctx, listRepeatablesQuery, queue)
	if err != nil {
		return nil, fmt.Errorf("failed to list repeatables of %s: %w", queue, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Repeatable, error) {
		var (
			r       Repeatable
			everyMS int64
			data    []byte
		)
		if err := row.Scan(&r.Queue, &r.Key, &r.Name, &everyMS, &data, &r.Priority, &r.NextRunAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Every = time.Duration(everyMS) * time.Millisecond
		r.Data = data
		return &r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list repeatables of %s: %w", queue, err)
	}
	return out, nil
}

func scanJob(row pgx.Row) (*Job, error) {
	var (
		j           Job
		state       string
		data, value []byte
	)
	err := row.Scan(
		&j.ID, &j.Queue, &j.Name, &data, &j.Priority, &j.Seq, &state, &j.Attempts, &j.MaxAttempts, &j.Progress,
		&value, &j.FailedReason, &j.RepeatKey, &j.CreatedAt, &j.StartedAt, &j.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	j.State = State(state)
	j.Data = data
	j.ReturnValue = value
	return &j, nil
}

func nullableJSON(v []byte) any {
	if len(v) == 0 {
		return nil
	}
	return v
}
