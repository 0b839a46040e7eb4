// Package worker ties the caching machinery together behind an explicit
// event dispatch table: install, activate, fetch, replay, and message events
// each map to one handler. Fetch events run concurrently; outbox replay is
// serialized by the queue itself.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/wirecache/wirecache/internal/logger"
	"github.com/wirecache/wirecache/pkg/cachestore"
	"github.com/wirecache/wirecache/pkg/lifecycle"
	"github.com/wirecache/wirecache/pkg/outbox"
	"github.com/wirecache/wirecache/pkg/router"
	"github.com/wirecache/wirecache/pkg/strategy"
	"github.com/wirecache/wirecache/pkg/update"
)

// ErrUnknownReplayTag is returned when a replay event names a queue that is
// not registered.
var ErrUnknownReplayTag = errors.New("worker: unknown replay tag")

// DefaultReplayTag is the queue tag for the main offline write outbox.
const DefaultReplayTag = "sync"

// Response headers the worker stamps onto answers it serves.
const (
	// HeaderSource reports where the response came from: cache, network,
	// or fallback.
	HeaderSource = "X-Wirecache-Source"

	// HeaderStale marks a cached response served past a failed refresh.
	HeaderStale = "X-Wirecache-Stale"
)

// Options wires a Worker's collaborators.
type Options struct {
	// Cache is the durable cache store.
	Cache *cachestore.Store

	// Fetcher performs origin fetches.
	Fetcher strategy.Fetcher

	// Rules is the validated routing table.
	Rules []router.Rule

	// Outbox is the offline write queue. Optional: without it, offline
	// writes fail back to passthrough.
	Outbox *outbox.Store

	// Coordinator mediates version handover.
	Coordinator *update.Coordinator

	// Manifest is this worker version's pre-cache manifest.
	Manifest lifecycle.Manifest

	// StrategyMetrics and LifecycleMetrics may be nil.
	StrategyMetrics  strategy.Metrics
	LifecycleMetrics lifecycle.Metrics
}

// Worker is one version of the interception worker: an event-driven process
// that answers intercepted requests from cache, network, or fallback, queues
// offline writes, and manages its own lifecycle.
type Worker struct {
	id         uuid.UUID
	opts       Options
	executor   *strategy.Executor
	lifecycle  *lifecycle.Manager
	dispatcher *Dispatcher
	queues     map[string]*outbox.Store

	offline  atomic.Bool
	onOnline atomic.Value // func()
}

// New creates a worker and builds its dispatch table. The routing table is
// validated here so a bad table fails at construction, not per request.
func New(opts Options) (*Worker, error) {
	if err := router.ValidateRules(opts.Rules); err != nil {
		return nil, fmt.Errorf("invalid routing table: %w", err)
	}
	if opts.Cache == nil {
		return nil, errors.New("worker: cache store is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("worker: fetcher is required")
	}
	if opts.Coordinator == nil {
		opts.Coordinator = update.NewCoordinator(update.PolicyManual, nil)
	}

	w := &Worker{
		id:         uuid.New(),
		opts:       opts,
		executor:   strategy.NewExecutor(opts.Cache, opts.Fetcher, opts.StrategyMetrics),
		lifecycle:  lifecycle.NewManager(opts.Manifest, opts.Cache, opts.Fetcher, opts.LifecycleMetrics),
		dispatcher: NewDispatcher(),
		queues:     make(map[string]*outbox.Store),
	}
	if opts.Outbox != nil {
		w.queues[DefaultReplayTag] = opts.Outbox
	}

	w.dispatcher.Register(EventInstall, HandlerFunc(w.handleInstall))
	w.dispatcher.Register(EventActivate, HandlerFunc(w.handleActivate))
	w.dispatcher.Register(EventFetch, HandlerFunc(w.handleFetch))
	w.dispatcher.Register(EventReplay, HandlerFunc(w.handleReplay))
	w.dispatcher.Register(EventMessage, HandlerFunc(w.handleMessage))

	return w, nil
}

// ID returns the worker instance identifier.
func (w *Worker) ID() uuid.UUID {
	return w.id
}

// Lifecycle returns this version's lifecycle manager.
func (w *Worker) Lifecycle() *lifecycle.Manager {
	return w.lifecycle
}

// Coordinator returns the update coordinator.
func (w *Worker) Coordinator() *update.Coordinator {
	return w.opts.Coordinator
}

// Dispatch routes an event through the dispatch table.
func (w *Worker) Dispatch(ctx context.Context, evt *Event) error {
	return w.dispatcher.Dispatch(ctx, evt)
}

// WaitBackground drains in-flight background revalidations. Used during
// shutdown and by tests.
func (w *Worker) WaitBackground() {
	w.executor.WaitBackground()
}

// QueueDepth reports the number of writes waiting in the default outbox.
// Returns zero when no outbox is configured.
func (w *Worker) QueueDepth(ctx context.Context) (int64, error) {
	ob, ok := w.queues[DefaultReplayTag]
	if !ok {
		return 0, nil
	}
	return ob.Count(ctx)
}

// ============================================================================
// Connectivity
// ============================================================================

// Offline reports the worker's connectivity assumption.
func (w *Worker) Offline() bool {
	return w.offline.Load()
}

// SetOffline flips the connectivity assumption. An offline-to-online
// transition fires the connectivity-restored callback (typically a replay
// scheduler kick).
func (w *Worker) SetOffline(offline bool) {
	was := w.offline.Swap(offline)
	if was && !offline {
		logger.Info("worker: connectivity restored")
		if fn, ok := w.onOnline.Load().(func()); ok && fn != nil {
			fn()
		}
	}
}

// OnConnectivityRestored registers the callback fired when the worker goes
// back online.
func (w *Worker) OnConnectivityRestored(fn func()) {
	w.onOnline.Store(fn)
}

// ============================================================================
// Install / activate handlers
// ============================================================================

// handleInstall pre-caches the manifest and reports the version as waiting.
// When no version is active yet the update applies immediately, matching the
// first-install experience: there is nobody to wait for.
func (w *Worker) handleInstall(ctx context.Context, evt *Event) error {
	if err := w.lifecycle.Install(ctx); err != nil {
		return err
	}

	coord := w.opts.Coordinator
	firstInstall := coord.Active() == nil

	if err := coord.ObserveWaiting(ctx, w.lifecycle); err != nil {
		return err
	}
	if firstInstall && w.lifecycle.State() == lifecycle.StateWaiting {
		if err := coord.ApplyUpdate(ctx); err != nil {
			return err
		}
		coord.ControllerChanged()
	}
	return nil
}

// handleActivate applies the waiting version and signals the controller
// change exactly once (the coordinator's guard absorbs duplicates).
func (w *Worker) handleActivate(ctx context.Context, evt *Event) error {
	if err := w.opts.Coordinator.ApplyUpdate(ctx); err != nil {
		return err
	}
	w.opts.Coordinator.ControllerChanged()
	return nil
}

// ============================================================================
// Fetch handler
// ============================================================================

// handleFetch answers an intercepted request and stores the response on the
// event. Background revalidation launched by the strategy extends the event,
// so Wait does not return until the refresh settles.
func (w *Worker) handleFetch(ctx context.Context, evt *Event) error {
	resp, err := w.fetch(ctx, evt.Request, evt.Extend)
	if err != nil {
		return err
	}
	evt.Response = resp
	return nil
}

// Fetch routes one intercepted request: GET requests run their matched
// caching strategy, other methods pass through online and queue offline.
// The page always gets a response; strategy fallbacks are responses too.
func (w *Worker) Fetch(ctx context.Context, req *strategy.Request) (*strategy.Response, error) {
	return w.fetch(ctx, req, nil)
}

func (w *Worker) fetch(ctx context.Context, req *strategy.Request, waitUntil func(func())) (*strategy.Response, error) {
	decision, err := router.Route(req, w.opts.Rules, w.Offline())
	if err != nil {
		return nil, err
	}

	switch decision.Action {
	case router.ActionExecute:
		return w.execute(ctx, req, decision.Rule, waitUntil)

	case router.ActionEnqueue:
		return w.enqueue(ctx, req)

	default:
		return w.opts.Fetcher.Fetch(ctx, req)
	}
}

// execute runs the matched rule's strategy against the live namespace.
func (w *Worker) execute(ctx context.Context, req *strategy.Request, rule *router.Rule, waitUntil func(func())) (*strategy.Response, error) {
	result, err := w.executor.Execute(ctx, req, strategy.Params{
		Kind:           rule.Strategy,
		Namespace:      w.liveNamespace(rule.Namespace),
		NetworkTimeout: rule.NetworkTimeout,
		MaxEntries:     rule.MaxEntries,
		MaxAge:         rule.MaxAge,
		WaitUntil:      waitUntil,
	})
	if err != nil {
		return nil, err
	}

	resp := result.Response
	if resp.Headers == nil {
		resp.Headers = http.Header{}
	}
	resp.Headers.Set(HeaderSource, string(result.Source))
	if result.Stale {
		resp.Headers.Set(HeaderStale, "true")
	}
	return resp, nil
}

// liveNamespace resolves a rule's namespace purpose against the active
// version, falling back to this worker's own version before activation.
func (w *Worker) liveNamespace(purpose string) cachestore.Namespace {
	version := w.lifecycle.Version()
	if active := w.opts.Coordinator.Active(); active != nil {
		version = active.Version()
	}
	return cachestore.Namespace{Purpose: purpose, Version: version}
}

// enqueue defers an offline write into the outbox and acknowledges it.
// Without an outbox the request passes through and fails or succeeds on its
// own.
func (w *Worker) enqueue(ctx context.Context, req *strategy.Request) (*strategy.Response, error) {
	ob := w.queues[DefaultReplayTag]
	if ob == nil {
		return w.opts.Fetcher.Fetch(ctx, req)
	}

	item, err := ob.Enqueue(ctx, outbox.Request{
		URL:    req.URL,
		Method: req.Method,
		Header: req.Headers,
		Body:   req.Body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to queue offline write: %w", err)
	}

	body := fmt.Sprintf(`{"queued":true,"id":%d}`, item.ID)
	return &strategy.Response{
		Status: http.StatusAccepted,
		Headers: http.Header{
			"Content-Type": []string{"application/json"},
		},
		Body: []byte(body),
	}, nil
}

// ============================================================================
// Replay handler
// ============================================================================

// handleReplay replays the queue named by the event tag. An empty tag means
// the default queue.
func (w *Worker) handleReplay(ctx context.Context, evt *Event) error {
	tag := evt.ReplayTag
	if tag == "" {
		tag = DefaultReplayTag
	}
	ob, ok := w.queues[tag]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownReplayTag, tag)
	}

	_, err := ob.ReplayAll(ctx, w.Deliver)
	return err
}

// Deliver sends one queued item to the origin. 5xx responses count as
// failures so the pass stops and retries later; 4xx responses are accepted
// as delivered, since retrying a rejected request can never succeed.
func (w *Worker) Deliver(ctx context.Context, item *outbox.Item) error {
	resp, err := w.opts.Fetcher.Fetch(ctx, &strategy.Request{
		Method:  item.Method,
		URL:     item.URL,
		Headers: item.Header(),
		Body:    item.Body,
	})
	if err != nil {
		return err
	}
	if resp.Status >= 500 {
		return fmt.Errorf("origin returned status %d", resp.Status)
	}
	return nil
}
