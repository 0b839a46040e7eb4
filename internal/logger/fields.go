package logger

import "log/slog"

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so cache, routing,
// and outbox activity can be correlated in log aggregation.
const (
	// Request interception
	KeyURL         = "url"         // Request URL (canonicalized)
	KeyMethod      = "method"      // HTTP method
	KeyDestination = "destination" // Request destination kind: document, style, script, image, api
	KeyStatus      = "status"      // HTTP response status code
	KeyRequestID   = "request_id"  // Correlation ID for an intercepted request

	// Strategy & routing
	KeyStrategy = "strategy" // Strategy kind: cache-first, network-first, ...
	KeySource   = "source"   // Response source: cache, network, fallback
	KeyStale    = "stale"    // Stale cache entry served

	// Cache store
	KeyNamespace = "namespace"  // Cache namespace storage name, e.g. static-v3
	KeyCacheHit  = "cache_hit"  // Cache hit indicator
	KeyEntries   = "entries"    // Entry count
	KeyEvicted   = "evicted"    // Entries evicted by trim/expiry
	KeyBytes     = "bytes"      // Payload size in bytes
	KeyCacheSize = "cache_size" // Total namespace size in bytes

	// Outbox
	KeyQueue    = "queue"    // Outbox queue name
	KeyItemID   = "item_id"  // Outbox item ID
	KeyPending  = "pending"  // Pending item count
	KeyAttempt  = "attempt"  // Replay attempt number
	KeyReplayed = "replayed" // Items delivered during a replay pass

	// Lifecycle & update
	KeyState   = "state"   // Worker lifecycle state
	KeyVersion = "version" // Worker version

	// Operation metadata
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyComponent  = "component"   // Subsystem: worker, cachestore, outbox, lifecycle, api
)

// Field constructors for type safety.

// URL returns a slog.Attr for a request URL
func URL(u string) slog.Attr {
	return slog.String(KeyURL, u)
}

// Method returns a slog.Attr for an HTTP method
func Method(m string) slog.Attr {
	return slog.String(KeyMethod, m)
}

// Status returns a slog.Attr for a response status code
func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// Strategy returns a slog.Attr for a strategy kind
func Strategy(kind string) slog.Attr {
	return slog.String(KeyStrategy, kind)
}

// Source returns a slog.Attr for a response source
func Source(src string) slog.Attr {
	return slog.String(KeySource, src)
}

// Namespace returns a slog.Attr for a cache namespace
func Namespace(name string) slog.Attr {
	return slog.String(KeyNamespace, name)
}

// CacheHit returns a slog.Attr for a cache hit indicator
func CacheHit(hit bool) slog.Attr {
	return slog.Bool(KeyCacheHit, hit)
}

// Queue returns a slog.Attr for an outbox queue name
func Queue(name string) slog.Attr {
	return slog.String(KeyQueue, name)
}

// ItemID returns a slog.Attr for an outbox item ID
func ItemID(id uint64) slog.Attr {
	return slog.Uint64(KeyItemID, id)
}

// State returns a slog.Attr for a lifecycle state
func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}

// Version returns a slog.Attr for a worker version
func Version(v string) slog.Attr {
	return slog.String(KeyVersion, v)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Component returns a slog.Attr naming the emitting subsystem
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}
