// Package scheduler drives the automatic expiry transitions of the
// booking pipeline.
//
// The pipeline model itself has no timers: holds and offers carry
// deadlines, and an external sweeper is responsible for invoking the
// engine when a deadline passes. The scheduler polls the engine at a
// fixed interval and issues automatic transitions for anything due.
// Deadlines that were superseded by a manual transition are skipped by
// the engine's normal guard, so running multiple schedulers against
// the same store is safe.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gigguin/bookflow/pkg/api"
)

// Config controls the sweep loop.
type Config struct {
	// PollInterval is the time between sweeps. Zero means DefaultPollInterval.
	PollInterval time.Duration

	// Logger receives sweep results. The zero value logs nowhere.
	Logger zerolog.Logger
}

// DefaultPollInterval is used when Config.PollInterval is zero.
const DefaultPollInterval = 30 * time.Second

// Scheduler periodically expires due holds and offers.
type Scheduler struct {
	engine api.Engine
	cfg    Config
}

// New creates a Scheduler sweeping the given engine.
func New(engine api.Engine, cfg Config) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Scheduler{engine: engine, cfg: cfg}
}

// SweepOnce runs a single expiry sweep at the given time and returns
// the number of accepted automatic transitions.
func (s *Scheduler) SweepOnce(ctx context.Context, now time.Time) (int, error) {
	return s.engine.ExpireDue(ctx, now)
}

// Run sweeps until the context is cancelled. It returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			n, err := s.SweepOnce(ctx, now)
			if err != nil {
				s.cfg.Logger.Error().Err(err).Msg("expiry_sweep_failed")
				continue
			}
			if n > 0 {
				s.cfg.Logger.Info().Int("expired", n).Msg("expiry_sweep")
			}
		}
	}
}
