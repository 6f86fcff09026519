// Package acquire downloads external audio through an ordered provider
// chain: each provider is tried in turn, provider failures are soft, and
// only exhausting the whole chain fails the caller.
package acquire

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Provider is one concrete way to fetch the audio behind a URL. Fetch
// writes into destDir and returns the downloaded file's path.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, url, destDir string) (string, error)
}

// ExhaustedError means every provider in the chain failed.
type ExhaustedError struct {
	URL      string
	Attempts int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d providers failed for %s", e.Attempts, e.URL)
}

// Chain tries providers in priority order. Each attempt is time-bounded;
// an error, a missing file or a zero-byte file advances to the next
// provider instead of failing the pipeline.
type Chain struct {
	providers []Provider
	timeout   time.Duration
	log       zerolog.Logger
}

func NewChain(log zerolog.Logger, timeout time.Duration, providers ...Provider) *Chain {
	return &Chain{providers: providers, timeout: timeout, log: log}
}

func (c *Chain) Fetch(ctx context.Context, url, destDir string) (string, error) {
	for _, p := range c.providers {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if c.timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, c.timeout)
		}

		path, err := p.Fetch(attemptCtx, url, destDir)
		if cancel != nil {
			cancel()
		}

		if err != nil {
			c.log.Warn().Err(err).Str("provider", p.Name()).Str("url", url).Msg("provider failed, trying next")
			continue
		}

		// A provider can report success and still leave nothing usable
		// behind; emptiness is a soft failure too.
		info, statErr := os.Stat(path)
		if statErr != nil || info.Size() == 0 {
			c.log.Warn().Str("provider", p.Name()).Str("url", url).Str("path", path).Msg("provider returned empty artifact, trying next")
			continue
		}

		c.log.Info().Str("provider", p.Name()).Str("url", url).Str("path", path).Int64("bytes", info.Size()).Msg("audio acquired")
		return path, nil
	}

	return "", &ExhaustedError{URL: url, Attempts: len(c.providers)}
}
