// Package strategy implements the response strategies an intercepted request
// can be answered with: cache-first, network-first, stale-while-revalidate,
// cache-only and network-only.
package strategy

import (
	"context"
	"net/http"
	"time"

	"github.com/wirecache/wirecache/pkg/cachestore"
)

// Kind identifies a strategy.
type Kind string

const (
	KindCacheFirst           Kind = "cache-first"
	KindNetworkFirst         Kind = "network-first"
	KindStaleWhileRevalidate Kind = "stale-while-revalidate"
	KindCacheOnly            Kind = "cache-only"
	KindNetworkOnly          Kind = "network-only"
)

// Valid reports whether the kind is one of the known strategies.
func (k Kind) Valid() bool {
	switch k {
	case KindCacheFirst, KindNetworkFirst, KindStaleWhileRevalidate, KindCacheOnly, KindNetworkOnly:
		return true
	}
	return false
}

// Destination classifies what an intercepted request is for.
// It mirrors the request metadata the host hands us alongside the URL.
type Destination string

const (
	DestDocument Destination = "document"
	DestStyle    Destination = "style"
	DestScript   Destination = "script"
	DestImage    Destination = "image"
	DestFont     Destination = "font"
	DestAPI      Destination = "api"
	DestOther    Destination = "other"
)

// Request is an intercepted outbound request.
type Request struct {
	Method      string
	URL         string
	Headers     http.Header
	Body        []byte
	Destination Destination
}

// Response is what a strategy produces for the page.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Source says where a response came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceNetwork  Source = "network"
	SourceFallback Source = "fallback"
)

// Result is the outcome of a strategy execution. Strategies never surface a
// raw network error to the page: a failed fetch resolves to a cached copy or
// a structured fallback response.
type Result struct {
	Response *Response

	// Source records where the response came from.
	Source Source

	// Stale is set when a cached entry was served after the network failed;
	// the caller may surface it to the page via a response header.
	Stale bool
}

// Fetcher performs the actual network fetch. Implementations decide
// transport details; executors only see success or failure.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req *Request) (*Response, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Cache is the slice of the cache store executors need.
type Cache interface {
	Match(ctx context.Context, ns cachestore.Namespace, url string) (*cachestore.Entry, bool, error)
	Put(ctx context.Context, ns cachestore.Namespace, entry *cachestore.Entry) error
	Trim(ctx context.Context, ns cachestore.Namespace, maxEntries int) (int, error)
}

// Params carries the per-request execution parameters resolved by the router.
type Params struct {
	// Kind selects the strategy.
	Kind Kind

	// Namespace is the cache namespace reads and write-throughs target.
	Namespace cachestore.Namespace

	// NetworkTimeout bounds the network fetch for network-first.
	// Zero means no executor-imposed timeout.
	NetworkTimeout time.Duration

	// MaxEntries trims the namespace after a write-through. Zero disables.
	MaxEntries int

	// MaxAge stamps written entries with an expiry. Zero disables.
	MaxAge time.Duration

	// WaitUntil, when set, launches background revalidation so the caller
	// can track its lifetime (a fetch event's extension mechanism). It must
	// run the function asynchronously. Nil means the executor launches the
	// goroutine itself.
	WaitUntil func(fn func())
}

// Metrics receives strategy observations. May be nil.
type Metrics interface {
	ObserveExecution(kind, source string, duration time.Duration)
}

// fallbackResponse is the structured "unavailable" answer used when neither
// cache nor network can serve. The page always gets a response, never a
// transport error.
func fallbackResponse(reason string) *Response {
	return &Response{
		Status: http.StatusServiceUnavailable,
		Headers: http.Header{
			"Content-Type": []string{"application/json"},
		},
		Body: []byte(`{"error":"` + reason + `"}`),
	}
}

// entryToResponse converts a stored entry into a page response.
func entryToResponse(e *cachestore.Entry) *Response {
	return &Response{
		Status:  e.Status,
		Headers: e.Headers.Clone(),
		Body:    e.Body,
	}
}

// responseToEntry converts a fetched response into a cache entry.
func responseToEntry(url string, resp *Response, maxAge time.Duration) *cachestore.Entry {
	entry := &cachestore.Entry{
		URL:        url,
		Status:     resp.Status,
		Headers:    resp.Headers,
		Body:       resp.Body,
		InsertedAt: time.Now().UTC(),
	}
	if maxAge > 0 {
		entry.ExpiresAt = entry.InsertedAt.Add(maxAge)
	}
	return entry
}
