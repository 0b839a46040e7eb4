package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wirecache/wirecache/internal/logger"
)

// Executor runs strategies against a cache and a fetcher.
//
// Executors are state-free per call and safe for concurrent use; the only
// shared state is the WaitGroup tracking stale-while-revalidate background
// fetches, so a shutdown can drain them.
type Executor struct {
	cache   Cache
	fetcher Fetcher
	metrics Metrics

	background sync.WaitGroup
}

// NewExecutor creates an Executor. metrics may be nil.
func NewExecutor(cache Cache, fetcher Fetcher, metrics Metrics) *Executor {
	return &Executor{
		cache:   cache,
		fetcher: fetcher,
		metrics: metrics,
	}
}

// Execute runs the strategy selected by params against the request.
//
// The returned Result always carries a response; network failures resolve to
// a cached copy or a structured fallback, never an error. Errors are reserved
// for cache corruption and context cancellation.
func (e *Executor) Execute(ctx context.Context, req *Request, params Params) (*Result, error) {
	start := time.Now()

	var result *Result
	var err error

	switch params.Kind {
	case KindCacheFirst:
		result, err = e.cacheFirst(ctx, req, params)
	case KindNetworkFirst:
		result, err = e.networkFirst(ctx, req, params)
	case KindStaleWhileRevalidate:
		result, err = e.staleWhileRevalidate(ctx, req, params)
	case KindCacheOnly:
		result, err = e.cacheOnly(ctx, req, params)
	case KindNetworkOnly:
		result, err = e.networkOnly(ctx, req)
	default:
		return nil, fmt.Errorf("unknown strategy kind %q", params.Kind)
	}

	if err == nil && e.metrics != nil {
		e.metrics.ObserveExecution(string(params.Kind), string(result.Source), time.Since(start))
	}
	return result, err
}

// WaitBackground blocks until all fire-and-forget revalidation fetches have
// settled. Used by shutdown and by tests observing the revalidated value.
func (e *Executor) WaitBackground() {
	e.background.Wait()
}

// spawn runs fn in the background, tracked by the executor's WaitGroup. When
// the caller supplied a WaitUntil hook the launch is delegated to it so the
// originating event also outlives the work.
func (e *Executor) spawn(params Params, fn func()) {
	e.background.Add(1)
	tracked := func() {
		defer e.background.Done()
		fn()
	}
	if params.WaitUntil != nil {
		params.WaitUntil(tracked)
		return
	}
	go tracked()
}

// cacheFirst serves from cache, falling back to the network with a
// write-through. A double miss resolves to the unavailable fallback; image
// placeholder substitution is the caller's decision, not ours.
func (e *Executor) cacheFirst(ctx context.Context, req *Request, params Params) (*Result, error) {
	entry, hit, err := e.cache.Match(ctx, params.Namespace, req.URL)
	if err != nil {
		return nil, err
	}
	if hit {
		return &Result{Response: entryToResponse(entry), Source: SourceCache}, nil
	}

	resp, fetchErr := e.fetcher.Fetch(ctx, req)
	if fetchErr != nil {
		logger.Debug("Cache-first fetch failed with no cached copy",
			"url", req.URL, "error", fetchErr)
		return &Result{Response: fallbackResponse("unavailable"), Source: SourceFallback}, nil
	}

	e.writeThrough(ctx, req.URL, resp, params)
	return &Result{Response: resp, Source: SourceNetwork}, nil
}

// networkFirst fetches with a timeout and falls back to the cache, serving
// the stale entry as-is. A double miss resolves to the offline fallback.
func (e *Executor) networkFirst(ctx context.Context, req *Request, params Params) (*Result, error) {
	fetchCtx := ctx
	if params.NetworkTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, params.NetworkTimeout)
		defer cancel()
	}

	resp, fetchErr := e.fetcher.Fetch(fetchCtx, req)
	if fetchErr == nil && !serverError(resp) {
		e.writeThrough(ctx, req.URL, resp, params)
		return &Result{Response: resp, Source: SourceNetwork}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Transport failure or a 5xx from the origin: both mean the network
	// could not produce a usable answer, so the cached copy wins.
	entry, hit, err := e.cache.Match(ctx, params.Namespace, req.URL)
	if err != nil {
		return nil, err
	}
	if hit {
		logger.Debug("Network-first falling back to cached copy",
			"url", req.URL, "status", respStatus(resp), "error", fetchErr)
		return &Result{Response: entryToResponse(entry), Source: SourceCache, Stale: true}, nil
	}

	if fetchErr == nil {
		// Nothing cached; the page sees the origin's error as-is.
		return &Result{Response: resp, Source: SourceNetwork}, nil
	}

	logger.Debug("Network-first offline with no cached copy", "url", req.URL, "error", fetchErr)
	return &Result{Response: fallbackResponse("offline"), Source: SourceFallback}, nil
}

// staleWhileRevalidate returns the cached entry immediately and refreshes it
// in the background. On a cold cache it blocks on the network once.
func (e *Executor) staleWhileRevalidate(ctx context.Context, req *Request, params Params) (*Result, error) {
	entry, hit, err := e.cache.Match(ctx, params.Namespace, req.URL)
	if err != nil {
		return nil, err
	}

	if hit {
		// Revalidate independently of the request's own lifetime; the page
		// may navigate away while the refresh is still in flight.
		bgCtx := context.WithoutCancel(ctx)
		e.spawn(params, func() {
			resp, fetchErr := e.fetcher.Fetch(bgCtx, req)
			if fetchErr != nil {
				logger.Debug("Background revalidation failed", "url", req.URL, "error", fetchErr)
				return
			}
			e.writeThrough(bgCtx, req.URL, resp, params)
		})

		return &Result{Response: entryToResponse(entry), Source: SourceCache}, nil
	}

	resp, fetchErr := e.fetcher.Fetch(ctx, req)
	if fetchErr != nil {
		logger.Debug("Revalidate fetch failed with cold cache", "url", req.URL, "error", fetchErr)
		return &Result{Response: fallbackResponse("unavailable"), Source: SourceFallback}, nil
	}

	e.writeThrough(ctx, req.URL, resp, params)
	return &Result{Response: resp, Source: SourceNetwork}, nil
}

// cacheOnly serves exclusively from cache.
func (e *Executor) cacheOnly(ctx context.Context, req *Request, params Params) (*Result, error) {
	entry, hit, err := e.cache.Match(ctx, params.Namespace, req.URL)
	if err != nil {
		return nil, err
	}
	if !hit {
		return &Result{Response: fallbackResponse("unavailable"), Source: SourceFallback}, nil
	}
	return &Result{Response: entryToResponse(entry), Source: SourceCache}, nil
}

// networkOnly passes straight through to the network. Used for routes that
// must always be fresh, e.g. telemetry beacons.
func (e *Executor) networkOnly(ctx context.Context, req *Request) (*Result, error) {
	resp, fetchErr := e.fetcher.Fetch(ctx, req)
	if fetchErr != nil {
		return &Result{Response: fallbackResponse("offline"), Source: SourceFallback}, nil
	}
	return &Result{Response: resp, Source: SourceNetwork}, nil
}

// cacheable reports whether a response may be stored. Only 2xx responses
// qualify; an origin error must never replace a good cached entry.
func cacheable(resp *Response) bool {
	return resp.Status >= 200 && resp.Status < 300
}

// serverError reports a 5xx origin response, which strategies treat the same
// as a transport failure.
func serverError(resp *Response) bool {
	return resp.Status >= 500
}

func respStatus(resp *Response) int {
	if resp == nil {
		return 0
	}
	return resp.Status
}

// writeThrough stores a fetched response and applies the rule's size limit.
// Write failures (e.g. quota) are logged and swallowed: the response is
// already in hand and will be served regardless.
func (e *Executor) writeThrough(ctx context.Context, url string, resp *Response, params Params) {
	if !cacheable(resp) {
		logger.Debug("Skipping write-through of non-success response",
			"namespace", params.Namespace.StorageName(), "url", url, "status", resp.Status)
		return
	}

	entry := responseToEntry(url, resp, params.MaxAge)
	if err := e.cache.Put(ctx, params.Namespace, entry); err != nil {
		logger.Warn("Cache write-through failed",
			"namespace", params.Namespace.StorageName(), "url", url, "error", err)
		return
	}

	if params.MaxEntries > 0 {
		if _, err := e.cache.Trim(ctx, params.Namespace, params.MaxEntries); err != nil {
			logger.Warn("Cache trim after write-through failed",
				"namespace", params.Namespace.StorageName(), "error", err)
		}
	}
}
