// Package update coordinates handover between worker versions.
//
// The coordinator tracks the active version and the most recently installed
// waiting version, applies updates on request (or automatically, depending on
// policy), and guards the post-handover client reload with a one-shot token
// so a duplicated controller-change signal can never cause a reload storm.
package update

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wirecache/wirecache/internal/logger"
	"github.com/wirecache/wirecache/pkg/lifecycle"
)

// ============================================================================
// Policy
// ============================================================================

// Policy controls when a waiting version is activated.
type Policy string

const (
	// PolicyManual waits for an explicit ApplyUpdate, typically confirmed by
	// the user. This is the default.
	PolicyManual Policy = "manual"

	// PolicyAuto activates a new version as soon as it finishes installing.
	PolicyAuto Policy = "auto"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	return p == PolicyManual || p == PolicyAuto
}

// ============================================================================
// Coordinator
// ============================================================================

// ErrNoUpdateAvailable is returned by ApplyUpdate when no version is waiting.
var ErrNoUpdateAvailable = errors.New("update: no update available")

// Reloader tells connected clients to reload after a new version takes over.
type Reloader interface {
	Reload()
}

// ReloaderFunc adapts a function to the Reloader interface.
type ReloaderFunc func()

// Reload implements Reloader.
func (f ReloaderFunc) Reload() { f() }

// Coordinator mediates between the active worker version and a waiting
// successor. Safe for concurrent use.
//
// The reload guard is armed each time a new waiting version is observed and
// consumed by the first controller-change signal after activation: the
// client reload happens exactly once per update cycle no matter how many
// times the signal fires.
type Coordinator struct {
	reloader Reloader

	mu          sync.Mutex
	policy      Policy
	active      *lifecycle.Manager
	waiting     *lifecycle.Manager
	reloadArmed bool
}

// NewCoordinator creates a coordinator with the given activation policy.
// An invalid policy falls back to manual.
func NewCoordinator(policy Policy, reloader Reloader) *Coordinator {
	if !policy.Valid() {
		policy = PolicyManual
	}
	return &Coordinator{policy: policy, reloader: reloader}
}

// Policy returns the activation policy.
func (c *Coordinator) Policy() Policy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy
}

// Active returns the currently active version's manager, or nil.
func (c *Coordinator) Active() *lifecycle.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// HasUpdateAvailable reports whether a waiting version is ready to activate.
func (c *Coordinator) HasUpdateAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiting != nil
}

// ObserveWaiting registers a version that has reached Waiting. A newer
// waiting version always replaces a stale one that was never applied, and
// arming the reload guard here is what permits the next post-activation
// reload.
//
// Under PolicyAuto the update is applied immediately.
func (c *Coordinator) ObserveWaiting(ctx context.Context, mgr *lifecycle.Manager) error {
	c.mu.Lock()
	if c.waiting != nil {
		logger.Info("update: replacing stale waiting version",
			"stale_version", c.waiting.Version(), "new_version", mgr.Version())
	}
	c.waiting = mgr
	c.reloadArmed = true
	auto := c.policy == PolicyAuto
	c.mu.Unlock()

	logger.Info("update: new version waiting", "version", mgr.Version())

	if auto {
		return c.ApplyUpdate(ctx)
	}
	return nil
}

// ApplyUpdate activates the most recently waiting version: the waiting
// manager activates (purging stale namespaces), the previous active version
// is marked redundant, and the waiting slot is cleared.
//
// Returns ErrNoUpdateAvailable when nothing is waiting. The client reload
// happens separately, on the controller-change signal.
func (c *Coordinator) ApplyUpdate(ctx context.Context) error {
	c.mu.Lock()
	next := c.waiting
	prev := c.active
	c.mu.Unlock()

	if next == nil {
		return ErrNoUpdateAvailable
	}

	if err := next.Activate(ctx); err != nil {
		return fmt.Errorf("failed to activate waiting version: %w", err)
	}
	if prev != nil {
		if err := prev.MarkRedundant(); err != nil {
			logger.Warn("update: failed to retire previous version",
				"version", prev.Version(), logger.Err(err))
		}
	}

	c.mu.Lock()
	c.active = next
	if c.waiting == next {
		c.waiting = nil
	}
	c.mu.Unlock()

	logger.Info("update: version activated", "version", next.Version())
	return nil
}

// ControllerChanged handles the "a new version took control" signal. The
// first signal after an update consumes the reload token and triggers the
// client reload; duplicate signals are no-ops until a new waiting version
// arms the guard again.
func (c *Coordinator) ControllerChanged() {
	c.mu.Lock()
	fire := c.reloadArmed
	c.reloadArmed = false
	c.mu.Unlock()

	if !fire {
		logger.Debug("update: controller change ignored, reload already performed")
		return
	}
	logger.Info("update: controller changed, reloading clients")
	if c.reloader != nil {
		c.reloader.Reload()
	}
}
