package lifecycle

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/wirecache/wirecache/pkg/cachestore"
	"github.com/wirecache/wirecache/pkg/strategy"
)

func openTestCache(t *testing.T) *cachestore.Store {
	t.Helper()
	store, err := cachestore.Open(t.TempDir(), cachestore.Options{})
	if err != nil {
		t.Fatalf("failed to open cache store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// manifestFetcher serves canned bodies per URL; URLs in fail return an error.
type manifestFetcher struct {
	bodies map[string]string
	fail   map[string]bool
}

func (f *manifestFetcher) Fetch(ctx context.Context, req *strategy.Request) (*strategy.Response, error) {
	if f.fail[req.URL] {
		return nil, errors.New("connection refused")
	}
	body, ok := f.bodies[req.URL]
	if !ok {
		return &strategy.Response{Status: http.StatusNotFound}, nil
	}
	return &strategy.Response{Status: http.StatusOK, Body: []byte(body)}, nil
}

func TestInstallPrecachesManifest(t *testing.T) {
	cache := openTestCache(t)
	fetcher := &manifestFetcher{bodies: map[string]string{
		"https://app.test/index.html": "<html>",
		"https://app.test/app.js":     "console.log(1)",
		"https://app.test/logo.png":   "png-bytes",
	}}

	mgr := NewManager(Manifest{
		Version: 3,
		Precache: map[string][]string{
			"static": {"https://app.test/index.html", "https://app.test/app.js"},
			"images": {"https://app.test/logo.png"},
		},
	}, cache, fetcher, nil)

	if err := mgr.Install(context.Background()); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if got := mgr.State(); got != StateWaiting {
		t.Fatalf("expected state %s after install, got %s", StateWaiting, got)
	}

	staticNS := cachestore.Namespace{Purpose: "static", Version: 3}
	entry, found, err := cache.Match(context.Background(), staticNS, "https://app.test/app.js")
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if !found {
		t.Fatal("expected pre-cached entry for app.js")
	}
	if string(entry.Body) != "console.log(1)" {
		t.Errorf("unexpected pre-cached body: %q", entry.Body)
	}
}

func TestInstallAbortDeletesPartialNamespaces(t *testing.T) {
	cache := openTestCache(t)

	// Seed the previous version's namespace; it must survive the failed install.
	oldNS := cachestore.Namespace{Purpose: "static", Version: 2}
	if err := cache.Put(context.Background(), oldNS, &cachestore.Entry{
		URL: "https://app.test/a", Status: 200, Body: []byte("old"),
	}); err != nil {
		t.Fatalf("seed Put failed: %v", err)
	}

	fetcher := &manifestFetcher{
		bodies: map[string]string{
			"https://app.test/a": "A",
			"https://app.test/c": "C",
		},
		fail: map[string]bool{"https://app.test/b": true},
	}
	mgr := NewManager(Manifest{
		Version: 3,
		Precache: map[string][]string{
			"static": {"https://app.test/a", "https://app.test/b", "https://app.test/c"},
		},
	}, cache, fetcher, nil)

	err := mgr.Install(context.Background())
	if !errors.Is(err, ErrInstallFailed) {
		t.Fatalf("expected ErrInstallFailed, got %v", err)
	}
	if got := mgr.State(); got != StateInstalling {
		t.Fatalf("expected state to stay %s, got %s", StateInstalling, got)
	}

	namespaces, err := cache.Namespaces(context.Background())
	if err != nil {
		t.Fatalf("Namespaces failed: %v", err)
	}
	for _, ns := range namespaces {
		if ns.Version == 3 {
			t.Errorf("expected aborted install namespaces deleted, found %s", ns.StorageName())
		}
	}

	// Previous version still serves.
	if _, found, err := cache.Match(context.Background(), oldNS, "https://app.test/a"); err != nil || !found {
		t.Fatalf("expected previous version entry to survive, found=%v err=%v", found, err)
	}
}

func TestInstallRequiredStatusFailure(t *testing.T) {
	cache := openTestCache(t)
	fetcher := &manifestFetcher{bodies: map[string]string{}} // everything 404s

	mgr := NewManager(Manifest{
		Version:  1,
		Precache: map[string][]string{"static": {"https://app.test/missing"}},
	}, cache, fetcher, nil)

	if err := mgr.Install(context.Background()); !errors.Is(err, ErrInstallFailed) {
		t.Fatalf("expected ErrInstallFailed on 404 manifest URL, got %v", err)
	}
}

func TestActivateDeletesStaleNamespaces(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	// Old version namespaces that must be purged.
	for _, ns := range []cachestore.Namespace{
		{Purpose: "static", Version: 2},
		{Purpose: "images", Version: 1},
	} {
		if err := cache.Put(ctx, ns, &cachestore.Entry{
			URL: "https://app.test/old", Status: 200, Body: []byte("old"),
		}); err != nil {
			t.Fatalf("seed Put failed: %v", err)
		}
	}

	fetcher := &manifestFetcher{bodies: map[string]string{
		"https://app.test/index.html": "<html>",
	}}
	mgr := NewManager(Manifest{
		Version:  3,
		Precache: map[string][]string{"static": {"https://app.test/index.html"}},
	}, cache, fetcher, nil)

	if err := mgr.Install(ctx); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if err := mgr.Activate(ctx); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if got := mgr.State(); got != StateActive {
		t.Fatalf("expected state %s, got %s", StateActive, got)
	}

	namespaces, err := cache.Namespaces(ctx)
	if err != nil {
		t.Fatalf("Namespaces failed: %v", err)
	}
	if len(namespaces) != 1 {
		t.Fatalf("expected only the current version namespace, got %v", namespaces)
	}
	if namespaces[0].StorageName() != "static-v3" {
		t.Errorf("expected static-v3 preserved, got %s", namespaces[0].StorageName())
	}
}

func TestInvalidTransitions(t *testing.T) {
	cache := openTestCache(t)
	fetcher := &manifestFetcher{bodies: map[string]string{}}
	mgr := NewManager(Manifest{Version: 1}, cache, fetcher, nil)

	// Activate straight from Installing is forbidden.
	if err := mgr.Activate(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Activate from installing: expected ErrInvalidTransition, got %v", err)
	}

	// Redundant requires Active.
	if err := mgr.MarkRedundant(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("MarkRedundant from installing: expected ErrInvalidTransition, got %v", err)
	}

	// Empty manifest installs trivially; double install is forbidden.
	if err := mgr.Install(context.Background()); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if err := mgr.Install(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second Install: expected ErrInvalidTransition, got %v", err)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateInstalling: "installing",
		StateWaiting:    "waiting",
		StateActivating: "activating",
		StateActive:     "active",
		StateRedundant:  "redundant",
		State(99):       "unknown(99)",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}
