// Package cachestore implements named, versioned durable response caches
// on BadgerDB. Each namespace holds immutable request/response entries keyed
// by canonical GET URL; writes are atomic per key.
package cachestore

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("cache store is closed")

	// ErrQuotaExceeded is returned when a write would exceed the configured
	// per-entry body size limit. Callers treat this as non-fatal: the fetched
	// response is still served, only the cache write is skipped.
	ErrQuotaExceeded = errors.New("cache write exceeds quota")

	// ErrNamespaceNotFound is returned when a namespace has never been written to.
	ErrNamespaceNotFound = errors.New("namespace not found")
)

// Namespace identifies a named, versioned cache bucket, e.g. {"static", 3}.
// Exactly one live namespace exists per purpose at a time; all others are
// garbage once a new version activates.
type Namespace struct {
	Purpose string `json:"purpose"`
	Version int    `json:"version"`
}

// StorageName returns the durable store name for the namespace, e.g. "static-v3".
func (n Namespace) StorageName() string {
	return fmt.Sprintf("%s-v%d", n.Purpose, n.Version)
}

// ParseStorageName parses a storage name like "images-v1" back into a Namespace.
func ParseStorageName(name string) (Namespace, error) {
	idx := strings.LastIndex(name, "-v")
	if idx <= 0 {
		return Namespace{}, fmt.Errorf("invalid namespace storage name: %q", name)
	}
	version, err := strconv.Atoi(name[idx+2:])
	if err != nil {
		return Namespace{}, fmt.Errorf("invalid namespace version in %q: %w", name, err)
	}
	return Namespace{Purpose: name[:idx], Version: version}, nil
}

// Entry is a stored response. Entries are immutable once written;
// a Put for an existing key replaces the entry, never mutates it.
type Entry struct {
	// URL is the canonical request URL the entry was stored under.
	URL string `json:"url"`

	// Status is the upstream HTTP status code.
	Status int `json:"status"`

	// Headers are the stored response headers.
	Headers http.Header `json:"headers"`

	// Body is the stored response body.
	Body []byte `json:"body"`

	// InsertedAt is the insertion timestamp. Trim evicts by this order.
	InsertedAt time.Time `json:"inserted_at"`

	// ExpiresAt is the optional expiry. Zero means the entry never expires
	// on its own; rule-level max-age is enforced by EvictExpired.
	ExpiresAt time.Time `json:"expires_at,omitzero"`

	// Seq is the insertion sequence within the namespace, used to maintain
	// the insertion-order index across replacing writes.
	Seq uint64 `json:"seq"`
}

// Expired reports whether the entry's own expiry has passed.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// CanonicalKey canonicalizes a request URL into the cache key identity:
// fragment stripped, host lowercased, default ports removed. Only GET
// requests are cache-eligible, so the method is not part of the key.
func CanonicalKey(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid cache key URL %q: %w", rawURL, err)
	}

	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}
