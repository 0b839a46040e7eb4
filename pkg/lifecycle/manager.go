package lifecycle

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/wirecache/wirecache/internal/logger"
	"github.com/wirecache/wirecache/pkg/cachestore"
	"github.com/wirecache/wirecache/pkg/strategy"
)

// ============================================================================
// Manifest
// ============================================================================

// Manifest describes what a worker version pre-caches: for each namespace
// purpose, the URLs that must be fetched and stored before the version may
// leave Installing.
type Manifest struct {
	// Version is the cache version shared by all of this worker's namespaces.
	Version int

	// Precache maps namespace purpose (e.g. "static", "images") to the URLs
	// pre-cached into that namespace on install.
	Precache map[string][]string
}

// Namespace returns the versioned namespace for a purpose.
func (m Manifest) Namespace(purpose string) cachestore.Namespace {
	return cachestore.Namespace{Purpose: purpose, Version: m.Version}
}

// Namespaces returns every namespace belonging to this version, sorted by
// purpose for deterministic iteration.
func (m Manifest) Namespaces() []cachestore.Namespace {
	purposes := make([]string, 0, len(m.Precache))
	for purpose := range m.Precache {
		purposes = append(purposes, purpose)
	}
	sort.Strings(purposes)

	out := make([]cachestore.Namespace, len(purposes))
	for i, purpose := range purposes {
		out[i] = m.Namespace(purpose)
	}
	return out
}

// ============================================================================
// Manager
// ============================================================================

// Cache is the slice of the cache store the lifecycle manager needs.
type Cache interface {
	Put(ctx context.Context, ns cachestore.Namespace, entry *cachestore.Entry) error
	DeleteNamespace(ctx context.Context, ns cachestore.Namespace) error
	Namespaces(ctx context.Context) ([]cachestore.Namespace, error)
}

// Metrics is implemented by consumers interested in state transitions.
type Metrics interface {
	ObserveTransition(from, to State)
}

// Manager owns the lifecycle of a single worker version: it pre-caches the
// manifest on install, purges stale namespaces on activation, and guards all
// state transitions. Safe for concurrent use.
type Manager struct {
	manifest Manifest
	cache    Cache
	fetcher  strategy.Fetcher
	metrics  Metrics

	mu    sync.Mutex
	state State
}

// NewManager creates a manager for the given version manifest, starting in
// Installing. The metrics sink may be nil.
func NewManager(manifest Manifest, cache Cache, fetcher strategy.Fetcher, metrics Metrics) *Manager {
	return &Manager{
		manifest: manifest,
		cache:    cache,
		fetcher:  fetcher,
		metrics:  metrics,
		state:    StateInstalling,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Version returns the manifest version this manager owns.
func (m *Manager) Version() int {
	return m.manifest.Version
}

// transition moves to the given state or fails with ErrInvalidTransition.
func (m *Manager) transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !canTransition(m.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, to)
	}

	from := m.state
	m.state = to
	if m.metrics != nil {
		m.metrics.ObserveTransition(from, to)
	}
	logger.Info("lifecycle: state changed",
		logger.Version(fmt.Sprintf("v%d", m.manifest.Version)),
		"from", from.String(), logger.State(to.String()))
	return nil
}

// ============================================================================
// Install
// ============================================================================

// Install pre-caches every manifest URL into this version's namespaces and
// transitions Installing -> Waiting.
//
// Any failed fetch aborts the whole install: namespaces written so far are
// deleted, the state stays Installing, and the previous active version is
// untouched. The returned error wraps ErrInstallFailed.
func (m *Manager) Install(ctx context.Context) error {
	if m.State() != StateInstalling {
		return fmt.Errorf("%w: install from %s", ErrInvalidTransition, m.State())
	}

	for _, ns := range m.manifest.Namespaces() {
		for _, rawURL := range m.manifest.Precache[ns.Purpose] {
			if err := m.precache(ctx, ns, rawURL); err != nil {
				m.abortInstall(ctx)
				return fmt.Errorf("%w: %s: %v", ErrInstallFailed, rawURL, err)
			}
		}
	}

	return m.transition(StateWaiting)
}

// precache fetches one URL and stores the response in the namespace.
// Non-2xx upstream responses count as failures: a manifest URL is required.
func (m *Manager) precache(ctx context.Context, ns cachestore.Namespace, rawURL string) error {
	resp, err := m.fetcher.Fetch(ctx, &strategy.Request{Method: http.MethodGet, URL: rawURL})
	if err != nil {
		return err
	}
	if resp.Status < 200 || resp.Status > 299 {
		return fmt.Errorf("upstream returned status %d", resp.Status)
	}

	return m.cache.Put(ctx, ns, &cachestore.Entry{
		URL:        rawURL,
		Status:     resp.Status,
		Headers:    resp.Headers,
		Body:       resp.Body,
		InsertedAt: time.Now(),
	})
}

// abortInstall deletes the namespaces this install may have written.
// Best-effort: a namespace that was never created is a no-op delete.
func (m *Manager) abortInstall(ctx context.Context) {
	for _, ns := range m.manifest.Namespaces() {
		if err := m.cache.DeleteNamespace(ctx, ns); err != nil {
			logger.Warn("lifecycle: failed to clean up aborted install",
				logger.Namespace(ns.StorageName()), logger.Err(err))
		}
	}
}

// ============================================================================
// Activate / supersede
// ============================================================================

// Activate transitions Waiting -> Activating -> Active, deleting every cache
// namespace that does not belong to this version on the way.
//
// Cleanup is best-effort: a namespace that fails to delete is logged and
// skipped, never blocking activation. Only an invalid starting state is an
// error.
func (m *Manager) Activate(ctx context.Context) error {
	if err := m.transition(StateActivating); err != nil {
		return err
	}

	m.purgeStaleNamespaces(ctx)

	return m.transition(StateActive)
}

// purgeStaleNamespaces deletes every namespace not in this version's set.
func (m *Manager) purgeStaleNamespaces(ctx context.Context) {
	keep := make(map[cachestore.Namespace]bool)
	for _, ns := range m.manifest.Namespaces() {
		keep[ns] = true
	}

	existing, err := m.cache.Namespaces(ctx)
	if err != nil {
		logger.Warn("lifecycle: failed to list namespaces for cleanup", logger.Err(err))
		return
	}

	for _, ns := range existing {
		if keep[ns] {
			continue
		}
		if err := m.cache.DeleteNamespace(ctx, ns); err != nil {
			logger.Warn("lifecycle: failed to delete stale namespace",
				logger.Namespace(ns.StorageName()), logger.Err(err))
			continue
		}
		logger.Info("lifecycle: deleted stale namespace", logger.Namespace(ns.StorageName()))
	}
}

// MarkRedundant transitions Active -> Redundant when a newer version has
// activated and taken over.
func (m *Manager) MarkRedundant() error {
	return m.transition(StateRedundant)
}
