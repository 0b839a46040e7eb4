package cachestore

import (
	"context"
	"time"

	"github.com/wirecache/wirecache/internal/logger"
)

// ============================================================================
// Sweeper
// ============================================================================

// SweeperConfig controls the periodic expiry sweep.
type SweeperConfig struct {
	// Interval is how often the sweep runs (default: 10m).
	Interval time.Duration
}

// ApplyDefaults fills in zero-valued fields with sane defaults.
func (c *SweeperConfig) ApplyDefaults() {
	if c.Interval == 0 {
		c.Interval = 10 * time.Minute
	}
}

// Sweeper periodically evicts expired entries from every namespace. Match
// already treats expired entries as absent; the sweep reclaims their disk
// space.
type Sweeper struct {
	store *Store
	cfg   SweeperConfig
}

// NewSweeper creates a sweeper for the given store.
func NewSweeper(store *Store, cfg SweeperConfig) *Sweeper {
	cfg.ApplyDefaults()
	return &Sweeper{store: store, cfg: cfg}
}

// Run sweeps on the configured interval until ctx is cancelled. It blocks, so
// callers typically run it in its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if _, err := s.Sweep(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("cachestore: expiry sweep failed", logger.Err(err))
		}
	}
}

// Sweep runs one eviction pass over every namespace and returns the number of
// entries removed. Entries are judged by their own expiry stamp only; age
// limits belong to the rules that wrote them.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	namespaces, err := s.store.Namespaces(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, ns := range namespaces {
		evicted, err := s.store.EvictExpired(ctx, ns, 0)
		if err != nil {
			return total, err
		}
		total += evicted
	}

	if total > 0 {
		logger.Debug("cachestore: expiry sweep evicted entries", "evicted", total)
	}
	return total, nil
}
