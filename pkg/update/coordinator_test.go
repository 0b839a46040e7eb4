package update

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/wirecache/wirecache/pkg/cachestore"
	"github.com/wirecache/wirecache/pkg/lifecycle"
	"github.com/wirecache/wirecache/pkg/strategy"
)

// waitingManager builds a lifecycle manager already in Waiting.
func waitingManager(t *testing.T, version int) *lifecycle.Manager {
	t.Helper()
	store, err := cachestore.Open(t.TempDir(), cachestore.Options{})
	if err != nil {
		t.Fatalf("failed to open cache store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	noFetch := strategy.FetcherFunc(func(ctx context.Context, req *strategy.Request) (*strategy.Response, error) {
		return nil, errors.New("no network in test")
	})
	mgr := lifecycle.NewManager(lifecycle.Manifest{Version: version}, store, noFetch, nil)
	if err := mgr.Install(context.Background()); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	return mgr
}

func TestHasUpdateAvailable(t *testing.T) {
	coord := NewCoordinator(PolicyManual, nil)
	if coord.HasUpdateAvailable() {
		t.Fatal("expected no update before a waiting version is observed")
	}

	if err := coord.ObserveWaiting(context.Background(), waitingManager(t, 2)); err != nil {
		t.Fatalf("ObserveWaiting failed: %v", err)
	}
	if !coord.HasUpdateAvailable() {
		t.Fatal("expected update available after waiting version observed")
	}
}

func TestApplyUpdateActivatesWaiting(t *testing.T) {
	coord := NewCoordinator(PolicyManual, nil)

	first := waitingManager(t, 1)
	if err := coord.ObserveWaiting(context.Background(), first); err != nil {
		t.Fatalf("ObserveWaiting failed: %v", err)
	}
	if err := coord.ApplyUpdate(context.Background()); err != nil {
		t.Fatalf("ApplyUpdate failed: %v", err)
	}
	if first.State() != lifecycle.StateActive {
		t.Fatalf("expected first version active, got %s", first.State())
	}
	if coord.HasUpdateAvailable() {
		t.Fatal("expected waiting slot cleared after apply")
	}

	// Second cycle retires the first version.
	second := waitingManager(t, 2)
	if err := coord.ObserveWaiting(context.Background(), second); err != nil {
		t.Fatalf("ObserveWaiting failed: %v", err)
	}
	if err := coord.ApplyUpdate(context.Background()); err != nil {
		t.Fatalf("ApplyUpdate failed: %v", err)
	}
	if second.State() != lifecycle.StateActive {
		t.Fatalf("expected second version active, got %s", second.State())
	}
	if first.State() != lifecycle.StateRedundant {
		t.Fatalf("expected first version redundant, got %s", first.State())
	}
}

func TestApplyUpdateWithoutWaiting(t *testing.T) {
	coord := NewCoordinator(PolicyManual, nil)
	if err := coord.ApplyUpdate(context.Background()); !errors.Is(err, ErrNoUpdateAvailable) {
		t.Fatalf("expected ErrNoUpdateAvailable, got %v", err)
	}
}

func TestReloadFiresOncePerUpdateCycle(t *testing.T) {
	var reloads atomic.Int32
	coord := NewCoordinator(PolicyManual, ReloaderFunc(func() { reloads.Add(1) }))

	if err := coord.ObserveWaiting(context.Background(), waitingManager(t, 1)); err != nil {
		t.Fatalf("ObserveWaiting failed: %v", err)
	}
	if err := coord.ApplyUpdate(context.Background()); err != nil {
		t.Fatalf("ApplyUpdate failed: %v", err)
	}

	// The controller-change signal fires twice; only one reload may happen.
	coord.ControllerChanged()
	coord.ControllerChanged()
	if got := reloads.Load(); got != 1 {
		t.Fatalf("expected exactly 1 reload, got %d", got)
	}

	// A brand-new waiting version re-arms the guard for the next cycle.
	if err := coord.ObserveWaiting(context.Background(), waitingManager(t, 2)); err != nil {
		t.Fatalf("ObserveWaiting failed: %v", err)
	}
	if err := coord.ApplyUpdate(context.Background()); err != nil {
		t.Fatalf("ApplyUpdate failed: %v", err)
	}
	coord.ControllerChanged()
	coord.ControllerChanged()
	if got := reloads.Load(); got != 2 {
		t.Fatalf("expected exactly 2 reloads after second cycle, got %d", got)
	}
}

func TestControllerChangeBeforeUpdateIsIgnored(t *testing.T) {
	var reloads atomic.Int32
	coord := NewCoordinator(PolicyManual, ReloaderFunc(func() { reloads.Add(1) }))

	coord.ControllerChanged()
	if got := reloads.Load(); got != 0 {
		t.Fatalf("expected no reload without a pending update, got %d", got)
	}
}

func TestUpdateRaceTargetsNewestWaiting(t *testing.T) {
	coord := NewCoordinator(PolicyManual, nil)

	stale := waitingManager(t, 1)
	newest := waitingManager(t, 2)
	if err := coord.ObserveWaiting(context.Background(), stale); err != nil {
		t.Fatalf("ObserveWaiting failed: %v", err)
	}
	if err := coord.ObserveWaiting(context.Background(), newest); err != nil {
		t.Fatalf("ObserveWaiting failed: %v", err)
	}

	if err := coord.ApplyUpdate(context.Background()); err != nil {
		t.Fatalf("ApplyUpdate failed: %v", err)
	}
	if newest.State() != lifecycle.StateActive {
		t.Fatalf("expected newest waiting version active, got %s", newest.State())
	}
	if stale.State() != lifecycle.StateWaiting {
		t.Fatalf("expected stale version discarded in waiting, got %s", stale.State())
	}
}

func TestAutoPolicyActivatesImmediately(t *testing.T) {
	var reloads atomic.Int32
	coord := NewCoordinator(PolicyAuto, ReloaderFunc(func() { reloads.Add(1) }))

	mgr := waitingManager(t, 1)
	if err := coord.ObserveWaiting(context.Background(), mgr); err != nil {
		t.Fatalf("ObserveWaiting failed: %v", err)
	}
	if mgr.State() != lifecycle.StateActive {
		t.Fatalf("expected auto policy to activate immediately, got %s", mgr.State())
	}
}

func TestInvalidPolicyFallsBackToManual(t *testing.T) {
	coord := NewCoordinator(Policy("yolo"), nil)
	if got := coord.Policy(); got != PolicyManual {
		t.Fatalf("expected fallback to manual policy, got %s", got)
	}
}
