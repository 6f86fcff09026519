package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"persona-engine/internal/entity"
	"persona-engine/internal/pipeline"
	"persona-engine/internal/repository/postgresql"
	"persona-engine/internal/service"
)

// JobStore is the repository port (implementation: postgresql.JobRepository).
type JobStore interface {
	ClaimByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	ClaimNext(ctx context.Context, typ string) (*entity.Job, error)
	Heartbeat(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID, output json.RawMessage, finalize func(ctx context.Context, tx pgx.Tx) error) error
	Fail(ctx context.Context, id uuid.UUID, errText string) error
}

// Signal is the wait side of the wake-up channel.
type Signal interface {
	Wait(ctx context.Context, typ string, timeout time.Duration) (string, error)
}

// Worker is one claim loop for one job type. It blocks on the signal with a
// bounded timeout and falls back to polling the store, so a dropped signal
// delays a job instead of stranding it. Ownership is decided solely by the
// store's compare-and-swap claim.
type Worker struct {
	typ            string
	store          JobStore
	signal         Signal
	exec           *pipeline.Executor
	waitTimeout    time.Duration
	heartbeatEvery time.Duration
	log            zerolog.Logger
}

func New(typ string, store JobStore, signal Signal, exec *pipeline.Executor, waitTimeout, heartbeatEvery time.Duration, log zerolog.Logger) *Worker {
	if waitTimeout <= 0 {
		waitTimeout = 5 * time.Second
	}
	if heartbeatEvery <= 0 {
		heartbeatEvery = 15 * time.Second
	}
	return &Worker{
		typ:            typ,
		store:          store,
		signal:         signal,
		exec:           exec,
		waitTimeout:    waitTimeout,
		heartbeatEvery: heartbeatEvery,
		log:            log.With().Str("job_type", typ).Logger(),
	}
}

// Run loops until the context is cancelled. A single job's failure never
// exits the loop.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info().Msg("worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("worker stopped")
			return
		default:
		}

		job := w.next(ctx)
		if job == nil {
			continue
		}
		w.handle(ctx, job)
	}
}

// next blocks for one claimed job, or returns nil when there is nothing to
// do this round.
func (w *Worker) next(ctx context.Context) *entity.Job {
	token, err := w.signal.Wait(ctx, w.typ, w.waitTimeout)
	switch {
	case err == nil:
		id, parseErr := uuid.Parse(token)
		if parseErr != nil {
			w.log.Warn().Str("token", token).Msg("discarding malformed signal token")
			return nil
		}
		job, claimErr := w.store.ClaimByID(ctx, id)
		if claimErr != nil {
			// Lost the race or the token was stale; both are routine.
			if !errors.Is(claimErr, postgresql.ErrClaimLost) {
				w.log.Error().Err(claimErr).Str("job_id", token).Msg("claim failed")
			}
			return nil
		}
		return job

	case errors.Is(err, service.ErrNoSignal):
		job, claimErr := w.store.ClaimNext(ctx, w.typ)
		if claimErr != nil {
			if !errors.Is(claimErr, postgresql.ErrNotFound) {
				w.log.Error().Err(claimErr).Msg("poll claim failed")
			}
			return nil
		}
		return job

	case ctx.Err() != nil:
		return nil

	default:
		w.log.Error().Err(err).Msg("signal wait failed")
		// Redis trouble should not turn into a busy loop.
		select {
		case <-ctx.Done():
		case <-time.After(w.waitTimeout):
		}
		return nil
	}
}

func (w *Worker) handle(ctx context.Context, job *entity.Job) {
	start := time.Now()
	log := w.log.With().Str("job_id", job.ID.String()).Logger()
	log.Info().Msg("job claimed")

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go w.heartbeat(hbCtx, job.ID)

	res, err := w.exec.Execute(ctx, job)
	if err != nil {
		w.fail(ctx, log, job.ID, err.Error())
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("job failed")
		return
	}

	if err := w.store.Complete(ctx, job.ID, res.Output, res.Finalize); err != nil {
		w.fail(ctx, log, job.ID, "finalize: "+err.Error())
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("job completion failed")
		return
	}

	log.Info().Dur("duration", time.Since(start)).Msg("job completed")
}

func (w *Worker) fail(ctx context.Context, log zerolog.Logger, id uuid.UUID, msg string) {
	if err := w.store.Fail(ctx, id, msg); err != nil {
		log.Error().Err(err).Msg("recording job failure failed")
	}
}

func (w *Worker) heartbeat(ctx context.Context, id uuid.UUID) {
	ticker := time.NewTicker(w.heartbeatEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.store.Heartbeat(ctx, id); err != nil && ctx.Err() == nil {
				w.log.Warn().Err(err).Str("job_id", id.String()).Msg("heartbeat failed")
			}
		}
	}
}
