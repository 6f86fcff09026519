package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"persona-engine/internal/entity"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrClaimLost means another worker moved the job out of pending first.
	// Not a failure: the loser walks away without side effects.
	ErrClaimLost = errors.New("claim lost")
)

const jobColumns = `id, type, status, input, output, error, created_at, started_at, completed_at, heartbeat_at`

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, typ string, input json.RawMessage) (uuid.UUID, error) {
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}

	const q = `
INSERT INTO jobs (type, status, input)
VALUES ($1, 'pending', $2)
RETURNING id;
`
	var id uuid.UUID
	if err := r.pool.QueryRow(ctx, q, typ, input).Scan(&id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1;`
	return scanJob(r.pool.QueryRow(ctx, q, id))
}

// ClaimByID is the signal-path claim: a single compare-and-swap on status.
// Exactly one caller gets rows affected; every other concurrent caller (and
// any caller holding a stale or duplicate signal token) gets ErrClaimLost.
func (r *JobRepository) ClaimByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	q := `
UPDATE jobs
SET status = 'processing', started_at = now(), heartbeat_at = now()
WHERE id = $1 AND status = 'pending'
RETURNING ` + jobColumns + `;`

	job, err := scanJob(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrClaimLost
	}
	return job, err
}

// ClaimNext is the poll-path claim: the oldest pending job of the type,
// locked and flipped to processing in one statement.
func (r *JobRepository) ClaimNext(ctx context.Context, typ string) (*entity.Job, error) {
	q := `
WITH next_job AS (
    SELECT id
    FROM jobs
    WHERE type = $1 AND status = 'pending'
    ORDER BY created_at ASC
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
UPDATE jobs
SET status = 'processing', started_at = now(), heartbeat_at = now()
WHERE id IN (SELECT id FROM next_job)
RETURNING ` + jobColumns + `;`

	return scanJob(r.pool.QueryRow(ctx, q, typ))
}

func (r *JobRepository) Heartbeat(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE jobs SET heartbeat_at = now() WHERE id = $1 AND status = 'processing';`

	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Complete marks the job completed and runs the pipeline's finalizer inside
// the same transaction, so the terminal write and its domain side effects
// land together or not at all.
func (r *JobRepository) Complete(ctx context.Context, id uuid.UUID, output json.RawMessage, finalize func(ctx context.Context, tx pgx.Tx) error) error {
	if len(output) == 0 {
		output = json.RawMessage(`{}`)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const q = `
UPDATE jobs
SET status = 'completed', output = $2, completed_at = now()
WHERE id = $1 AND status = 'processing';
`
	tag, err := tx.Exec(ctx, q, id, output)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if finalize != nil {
		if err := finalize(ctx, tx); err != nil {
			return fmt.Errorf("finalize: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *JobRepository) Fail(ctx context.Context, id uuid.UUID, errText string) error {
	const q = `
UPDATE jobs
SET status = 'failed', error = $2, completed_at = now()
WHERE id = $1 AND status = 'processing';
`
	tag, err := r.pool.Exec(ctx, q, id, errText)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReleaseStale returns processing jobs whose worker stopped heartbeating to
// pending, so another worker can claim them. At-least-once delivery.
func (r *JobRepository) ReleaseStale(ctx context.Context, olderThan time.Duration) ([]*entity.Job, error) {
	q := `
UPDATE jobs
SET status = 'pending', started_at = NULL, heartbeat_at = NULL
WHERE status = 'processing'
  AND COALESCE(heartbeat_at, started_at) < now() - make_interval(secs => $1)
RETURNING ` + jobColumns + `;`

	rows, err := r.pool.Query(ctx, q, olderThan.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var released []*entity.Job
	for rows.Next() {
		job, err := scanJobRow(rows)
		if err != nil {
			return nil, err
		}
		released = append(released, job)
	}
	return released, rows.Err()
}

func scanJob(row pgx.Row) (*entity.Job, error) {
	job, err := scanJobRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func scanJobRow(row pgx.Row) (*entity.Job, error) {
	var (
		job         entity.Job
		statusText  string
		inputBytes  []byte
		outputBytes []byte
	)

	if err := row.Scan(
		&job.ID,
		&job.Type,
		&statusText,
		&inputBytes,
		&outputBytes, // NULL => nil
		&job.Error,   // NULL => nil
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
		&job.HeartbeatAt,
	); err != nil {
		return nil, err
	}

	job.Status = entity.JobStatus(statusText)
	job.Input = json.RawMessage(inputBytes)
	if outputBytes != nil {
		job.Output = json.RawMessage(outputBytes)
	}
	return &job, nil
}
