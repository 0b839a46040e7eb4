package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/wirecache/wirecache/internal/logger"
)

// ============================================================================
// Scheduler
// ============================================================================

// SchedulerConfig controls when replay passes run.
type SchedulerConfig struct {
	// Interval is how often a replay pass runs while items are queued
	// (default: 30s). Connectivity signals via Kick trigger a pass
	// immediately regardless of the interval.
	Interval time.Duration

	// InitialBackoff is the wait before the first retry after a failed pass
	// (default: 1s). Subsequent retries use exponential backoff up to
	// MaxBackoff.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum wait between failed passes (default: 2m).
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff
	// (default: 2.0).
	BackoffMultiplier float64
}

// ApplyDefaults fills in zero-valued fields with sane defaults.
func (c *SchedulerConfig) ApplyDefaults() {
	if c.Interval == 0 {
		c.Interval = 30 * time.Second
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 2 * time.Minute
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = 2.0
	}
}

// Scheduler drives replay passes against a Store.
//
// It runs a pass on a fixed interval while items are queued, immediately when
// kicked (connectivity restored), and backs off exponentially after failed
// passes so an unreachable origin is not hammered.
type Scheduler struct {
	store   *Store
	deliver DeliverFunc
	cfg     SchedulerConfig
	kick    chan struct{}
}

// NewScheduler creates a scheduler for the given store and delivery function.
func NewScheduler(store *Store, deliver DeliverFunc, cfg SchedulerConfig) *Scheduler {
	cfg.ApplyDefaults()
	return &Scheduler{
		store:   store,
		deliver: deliver,
		cfg:     cfg,
		kick:    make(chan struct{}, 1),
	}
}

// Kick requests an immediate replay pass. Non-blocking; multiple kicks
// before the scheduler wakes coalesce into one pass.
func (s *Scheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Run executes replay passes until ctx is cancelled. It blocks, so callers
// typically run it in its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	failures := 0
	wait := s.cfg.Interval

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.kick:
		case <-time.After(wait):
		}

		result, err := s.store.ReplayAll(ctx, s.deliver)
		switch {
		case err == nil:
			failures = 0
			wait = s.cfg.Interval
		case errors.Is(err, ErrReplayInProgress):
			// Another pass is draining the queue; check back on schedule.
			wait = s.cfg.Interval
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return
		default:
			wait = s.calculateBackoff(failures)
			failures++
			logger.Debug("outbox: replay pass failed, backing off",
				"delivered", result.Delivered, "remaining", result.Remaining,
				"backoff", wait, logger.Err(err))
		}
	}
}

// calculateBackoff returns the backoff duration for a given attempt using the
// scheduler's retry config.
func (s *Scheduler) calculateBackoff(attempt int) time.Duration {
	backoff := float64(s.cfg.InitialBackoff)
	for i := 0; i < attempt; i++ {
		backoff *= s.cfg.BackoffMultiplier
	}
	if backoff > float64(s.cfg.MaxBackoff) {
		backoff = float64(s.cfg.MaxBackoff)
	}
	return time.Duration(backoff)
}
