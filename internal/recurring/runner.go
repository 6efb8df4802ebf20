package recurring

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Runner invokes the generator periodically. Errors are logged and swallowed
// here; an aborted run loses nothing because the generator resumes from
// persisted anchors on the next tick.
type Runner struct {
	gen      *Generator
	interval time.Duration
	logger   zerolog.Logger
}

func NewRunner(gen *Generator, interval time.Duration, logger *zerolog.Logger) *Runner {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &Runner{
		gen:      gen,
		interval: interval,
		logger:   logger.With().Str("component", "recurring_runner").Logger(),
	}
}

// Start runs one pass immediately, then on every tick; stops when ctx is
// done.
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info().Dur("interval", r.interval).Msg("recurring runner started")
	defer r.logger.Info().Msg("recurring runner stopped")

	r.runOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	n, err := r.gen.Process(ctx)
	if err != nil {
		r.logger.Error().Err(err).Int("inserted", n).Msg("recurring generation pass failed")
		return
	}
	if n > 0 {
		r.logger.Info().Int("inserted", n).Msg("recurring generation pass complete")
	}
}
