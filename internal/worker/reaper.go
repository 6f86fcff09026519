package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"persona-engine/internal/entity"
)

type ReaperStore interface {
	ReleaseStale(ctx context.Context, olderThan time.Duration) ([]*entity.Job, error)
}

type ReaperSignal interface {
	Push(ctx context.Context, typ, jobID string) error
}

// Reaper periodically returns processing jobs whose worker stopped
// heartbeating to pending and re-signals them, so a crashed worker's jobs
// are picked up again instead of sticking in processing forever.
type Reaper struct {
	store     ReaperStore
	signal    ReaperSignal
	every     time.Duration
	olderThan time.Duration
	log       zerolog.Logger
}

func NewReaper(store ReaperStore, signal ReaperSignal, every, olderThan time.Duration, log zerolog.Logger) *Reaper {
	if every <= 0 {
		every = 30 * time.Second
	}
	if olderThan <= 0 {
		olderThan = 5 * time.Minute
	}
	return &Reaper{store: store, signal: signal, every: every, olderThan: olderThan, log: log}
}

func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			released, err := r.store.ReleaseStale(ctx, r.olderThan)
			if err != nil {
				r.log.Error().Err(err).Msg("reaper: release stale jobs failed")
				continue
			}
			for _, job := range released {
				if err := r.signal.Push(ctx, job.Type, job.ID.String()); err != nil {
					r.log.Warn().Err(err).Str("job_id", job.ID.String()).Msg("reaper: re-signal failed")
				}
			}
			if len(released) > 0 {
				r.log.Info().Int("count", len(released)).Msg("reaper: requeued stale jobs")
			}
		}
	}
}
