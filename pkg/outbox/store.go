// Package outbox implements the durable offline write queue.
//
// Write requests intercepted while the origin is unreachable are appended to
// a SQLite-backed table and replayed in insertion order once connectivity
// returns. Replay is strictly FIFO: the first delivery failure stops the pass
// and every later item stays queued, so the origin always observes writes in
// the order they were issued.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wirecache/wirecache/internal/logger"
)

// ============================================================================
// Errors
// ============================================================================

var (
	// ErrReplayInProgress is returned by ReplayAll when another replay pass
	// is already running. Only one pass may drain the queue at a time.
	ErrReplayInProgress = errors.New("outbox: replay already in progress")

	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("outbox: store is closed")
)

// ============================================================================
// Types
// ============================================================================

// Request captures the parts of an intercepted write request that must
// survive a restart.
type Request struct {
	URL    string
	Method string
	Header http.Header
	Body   []byte
}

// DeliverFunc sends a single queued item to the origin. A nil error means the
// item was accepted and can be removed from the queue.
type DeliverFunc func(ctx context.Context, item *Item) error

// ReplayResult summarizes a replay pass.
type ReplayResult struct {
	// Delivered is the number of items removed from the queue.
	Delivered int

	// Remaining is the number of items still pending after the pass.
	Remaining int
}

// Metrics is implemented by consumers interested in queue activity.
// All methods must be safe for concurrent use.
type Metrics interface {
	ObserveEnqueue()
	ObserveDelivered()
	ObserveReplayFailure()
}

// Store is the durable outbox backed by SQLite.
//
// All methods are safe for concurrent use. At most one replay pass runs at a
// time; concurrent calls to ReplayAll fail fast with ErrReplayInProgress.
type Store struct {
	db        *gorm.DB
	metrics   Metrics
	replaying atomic.Bool
	closed    atomic.Bool
}

// Open opens (or creates) the outbox database at the given path and runs
// schema migration. The metrics sink may be nil.
func Open(path string, metrics Metrics) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create outbox directory: %w", err)
	}

	// SQLite pragmas for better concurrent access:
	// - journal_mode(WAL): Write-Ahead Logging for concurrent readers/single writer
	// - busy_timeout(5000): Wait up to 5 seconds when database is locked
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open outbox database: %w", err)
	}

	if err := db.AutoMigrate(&Item{}); err != nil {
		return nil, fmt.Errorf("failed to migrate outbox schema: %w", err)
	}

	return &Store{db: db, metrics: metrics}, nil
}

// Close closes the underlying database. Further operations fail with
// ErrStoreClosed.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

// ============================================================================
// Queue operations
// ============================================================================

// Enqueue appends a write request to the queue and returns the stored item.
// The item is durable once Enqueue returns.
func (s *Store) Enqueue(ctx context.Context, req Request) (*Item, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	item := &Item{
		URL:    req.URL,
		Method: req.Method,
		Body:   req.Body,
		Status: StatusPending,
	}
	if err := item.SetHeader(req.Header); err != nil {
		return nil, fmt.Errorf("failed to encode request headers: %w", err)
	}

	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, fmt.Errorf("failed to enqueue request: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ObserveEnqueue()
	}
	logger.Debug("outbox: request enqueued",
		logger.ItemID(uint64(item.ID)), logger.Method(item.Method), logger.URL(item.URL))
	return item, nil
}

// Pending returns all queued items in insertion order.
func (s *Store) Pending(ctx context.Context) ([]Item, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	var items []Item
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending items: %w", err)
	}
	return items, nil
}

// Count returns the number of queued items.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if s.closed.Load() {
		return 0, ErrStoreClosed
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&Item{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count pending items: %w", err)
	}
	return n, nil
}

// ReplayAll drains the queue in insertion order, calling deliver for each
// item. Successfully delivered items are removed. The pass stops at the first
// delivery failure: the failed item has its attempt recorded and every later
// item is left untouched, preserving delivery order for the next pass.
//
// Returns ErrReplayInProgress if another pass is already running. A delivery
// failure is returned wrapped so callers can back off and retry.
func (s *Store) ReplayAll(ctx context.Context, deliver DeliverFunc) (ReplayResult, error) {
	if s.closed.Load() {
		return ReplayResult{}, ErrStoreClosed
	}
	if !s.replaying.CompareAndSwap(false, true) {
		return ReplayResult{}, ErrReplayInProgress
	}
	defer s.replaying.Store(false)

	items, err := s.Pending(ctx)
	if err != nil {
		return ReplayResult{}, err
	}

	result := ReplayResult{Remaining: len(items)}
	for idx := range items {
		item := &items[idx]

		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := deliver(ctx, item); err != nil {
			if recErr := s.recordFailure(ctx, item, err); recErr != nil {
				logger.Warn("outbox: failed to record delivery failure",
					logger.ItemID(uint64(item.ID)), logger.Err(recErr))
			}
			if s.metrics != nil {
				s.metrics.ObserveReplayFailure()
			}
			logger.Warn("outbox: replay stopped on delivery failure",
				logger.ItemID(uint64(item.ID)), logger.URL(item.URL), logger.Err(err))
			return result, fmt.Errorf("failed to deliver item %d: %w", item.ID, err)
		}

		if err := s.db.WithContext(ctx).Delete(item).Error; err != nil {
			return result, fmt.Errorf("failed to remove delivered item %d: %w", item.ID, err)
		}
		result.Delivered++
		result.Remaining--
		if s.metrics != nil {
			s.metrics.ObserveDelivered()
		}
	}

	if result.Delivered > 0 {
		logger.Info("outbox: replay complete", "delivered", result.Delivered)
	}
	return result, nil
}

// recordFailure persists the outcome of a failed delivery attempt.
func (s *Store) recordFailure(ctx context.Context, item *Item, cause error) error {
	return s.db.WithContext(ctx).Model(item).Updates(map[string]any{
		"status":     StatusFailed,
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": cause.Error(),
	}).Error
}
