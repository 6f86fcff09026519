package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoSignal is returned by Wait when the timeout elapses with nothing
// pushed. Callers fall back to polling the job store directly.
var ErrNoSignal = errors.New("no signal")

// Signal is a best-effort, at-least-once wake-up channel layered over the
// job store. Tokens are job ids; receipt proves nothing. The receiver must
// re-verify via the claim, which makes duplicates and stale tokens harmless.
type Signal interface {
	Push(ctx context.Context, typ, jobID string) error
	Wait(ctx context.Context, typ string, timeout time.Duration) (string, error)
}

// redisSignal keeps one Redis list per job type.
type redisSignal struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisSignal(rdb *redis.Client, prefix string) Signal {
	if prefix == "" {
		prefix = "jobs:signal"
	}
	return &redisSignal{rdb: rdb, prefix: prefix}
}

func (s *redisSignal) key(typ string) string {
	return s.prefix + ":" + typ
}

func (s *redisSignal) Push(ctx context.Context, typ, jobID string) error {
	return s.rdb.LPush(ctx, s.key(typ), jobID).Err()
}

func (s *redisSignal) Wait(ctx context.Context, typ string, timeout time.Duration) (string, error) {
	res, err := s.rdb.BRPop(ctx, timeout, s.key(typ)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoSignal
		}
		return "", err
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return "", ErrNoSignal
	}
	return res[1], nil
}
