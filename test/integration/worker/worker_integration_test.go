//go:build integration

package worker_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirecache/wirecache/pkg/cachestore"
	"github.com/wirecache/wirecache/pkg/lifecycle"
	"github.com/wirecache/wirecache/pkg/outbox"
	"github.com/wirecache/wirecache/pkg/router"
	"github.com/wirecache/wirecache/pkg/strategy"
	"github.com/wirecache/wirecache/pkg/update"
	"github.com/wirecache/wirecache/pkg/worker"
)

// origin is a real HTTP origin for end-to-end runs. It counts hits per path
// and can be switched to fail every request.
type origin struct {
	server *httptest.Server

	mu    sync.Mutex
	hits  map[string]int
	down  atomic.Bool
	posts []string
}

func newOrigin(t *testing.T) *origin {
	t.Helper()
	o := &origin{hits: make(map[string]int)}
	o.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if o.down.Load() {
			http.Error(w, "origin down", http.StatusServiceUnavailable)
			return
		}

		o.mu.Lock()
		o.hits[r.URL.Path]++
		if r.Method == http.MethodPost {
			o.posts = append(o.posts, r.URL.Path)
		}
		o.mu.Unlock()

		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("body:" + r.URL.Path))
	}))
	t.Cleanup(o.server.Close)
	return o
}

func (o *origin) url(path string) string {
	return o.server.URL + path
}

func (o *origin) hitCount(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[path]
}

func (o *origin) postOrder() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.posts))
	copy(out, o.posts)
	return out
}

type env struct {
	store  *cachestore.Store
	outbox *outbox.Store
	origin *origin
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()

	store, err := cachestore.Open(filepath.Join(dir, "cache"), cachestore.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ob, err := outbox.Open(filepath.Join(dir, "outbox.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ob.Close() })

	return &env{store: store, outbox: ob, origin: newOrigin(t)}
}

func (e *env) newWorker(t *testing.T, version int, precache map[string][]string, coord *update.Coordinator) *worker.Worker {
	t.Helper()

	w, err := worker.New(worker.Options{
		Cache:   e.store,
		Fetcher: worker.NewHTTPFetcher(5 * time.Second),
		Rules: []router.Rule{
			{Name: "static", Extensions: []string{".css", ".js"}, Strategy: strategy.KindCacheFirst, Namespace: "static"},
			{Name: "default", Strategy: strategy.KindNetworkFirst, Namespace: "pages"},
		},
		Outbox:      e.outbox,
		Coordinator: coord,
		Manifest:    lifecycle.Manifest{Version: version, Precache: precache},
	})
	require.NoError(t, err)
	return w
}

func TestWorkerEndToEnd(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	var reloads atomic.Int32
	coord := update.NewCoordinator(update.PolicyManual, update.ReloaderFunc(func() {
		reloads.Add(1)
	}))

	w1 := e.newWorker(t, 1, map[string][]string{
		"static": {e.url(t, "/app.css")},
	}, coord)

	require.NoError(t, w1.Dispatch(ctx, &worker.Event{Kind: worker.EventInstall}))
	require.Equal(t, lifecycle.StateActive, w1.Lifecycle().State())
	assert.EqualValues(t, 1, reloads.Load(), "first activation reloads clients once")

	t.Run("CacheFirstServesPrecachedWithoutOrigin", func(t *testing.T) {
		before := e.origin.hitCount("/app.css")

		resp, err := w1.Fetch(ctx, &strategy.Request{Method: http.MethodGet, URL: e.url(t, "/app.css")})
		require.NoError(t, err)
		assert.Equal(t, "body:/app.css", string(resp.Body))
		assert.Equal(t, string(strategy.SourceCache), resp.Headers.Get(worker.HeaderSource))
		assert.Equal(t, before, e.origin.hitCount("/app.css"))
	})

	t.Run("NetworkFirstFallsBackToCacheWhenOriginDies", func(t *testing.T) {
		pageURL := e.url(t, "/index.html")

		resp, err := w1.Fetch(ctx, &strategy.Request{Method: http.MethodGet, URL: pageURL})
		require.NoError(t, err)
		assert.Equal(t, string(strategy.SourceNetwork), resp.Headers.Get(worker.HeaderSource))

		e.origin.down.Store(true)
		defer e.origin.down.Store(false)

		resp, err = w1.Fetch(ctx, &strategy.Request{Method: http.MethodGet, URL: pageURL})
		require.NoError(t, err)
		assert.Equal(t, "body:/index.html", string(resp.Body))
		assert.Equal(t, "true", resp.Headers.Get(worker.HeaderStale))
	})

	t.Run("OfflineWritesQueueAndReplayInOrder", func(t *testing.T) {
		w1.SetOffline(true)

		for _, path := range []string{"/api/1", "/api/2", "/api/3"} {
			resp, err := w1.Fetch(ctx, &strategy.Request{Method: http.MethodPost, URL: e.url(t, path)})
			require.NoError(t, err)
			assert.Equal(t, http.StatusAccepted, resp.Status)
		}

		depth, err := w1.QueueDepth(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 3, depth)
		assert.Empty(t, e.origin.postOrder(), "offline writes must not reach the origin")

		w1.SetOffline(false)
		require.NoError(t, w1.Dispatch(ctx, &worker.Event{Kind: worker.EventReplay}))

		assert.Equal(t, []string{"/api/1", "/api/2", "/api/3"}, e.origin.postOrder())
		depth, err = w1.QueueDepth(ctx)
		require.NoError(t, err)
		assert.Zero(t, depth)
	})

	t.Run("UpdateCycleActivatesNewVersionAndReloadsOnce", func(t *testing.T) {
		w2 := e.newWorker(t, 2, map[string][]string{
			"static": {e.url(t, "/app.v2.css")},
		}, coord)

		require.NoError(t, w2.Lifecycle().Install(ctx))
		require.NoError(t, coord.ObserveWaiting(ctx, w2.Lifecycle()))
		assert.True(t, coord.HasUpdateAvailable())

		reloadsBefore := reloads.Load()
		require.NoError(t, coord.ApplyUpdate(ctx))
		coord.ControllerChanged()
		coord.ControllerChanged() // duplicate signal must not reload again

		assert.Equal(t, reloadsBefore+1, reloads.Load())
		assert.Equal(t, lifecycle.StateActive, w2.Lifecycle().State())
		assert.Equal(t, lifecycle.StateRedundant, w1.Lifecycle().State())

		// Old version's namespaces are gone, new ones remain.
		namespaces, err := e.store.Namespaces(ctx)
		require.NoError(t, err)
		for _, ns := range namespaces {
			assert.Equal(t, 2, ns.Version, "stale namespace %s survived activation", ns.StorageName())
		}
	})
}

func TestSchedulerDrainsQueueAfterConnectivityReturns(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := e.newWorker(t, 1, nil, update.NewCoordinator(update.PolicyManual, nil))
	require.NoError(t, w.Dispatch(ctx, &worker.Event{Kind: worker.EventInstall}))

	scheduler := outbox.NewScheduler(e.outbox, w.Deliver, outbox.SchedulerConfig{
		Interval: time.Hour, // only the kick should trigger a pass
	})
	w.OnConnectivityRestored(scheduler.Kick)
	go scheduler.Run(ctx)

	w.SetOffline(true)
	_, err := w.Fetch(ctx, &strategy.Request{Method: http.MethodPost, URL: e.url(t, "/api/queued")})
	require.NoError(t, err)

	w.SetOffline(false)

	require.Eventually(t, func() bool {
		depth, err := w.QueueDepth(context.Background())
		return err == nil && depth == 0
	}, 5*time.Second, 20*time.Millisecond, "queued write was not replayed after reconnect")

	assert.Equal(t, []string{"/api/queued"}, e.origin.postOrder())
}

func (e *env) url(t *testing.T, path string) string {
	t.Helper()
	return e.origin.url(path)
}
