package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for intercepted-request spans.
// These follow OpenTelemetry semantic conventions where applicable;
// worker-specific keys use the "worker." prefix.
const (
	AttrURL         = "url.full"
	AttrMethod      = "http.request.method"
	AttrStatus      = "http.response.status_code"
	AttrDestination = "worker.destination"
	AttrStrategy    = "worker.strategy"
	AttrNamespace   = "worker.namespace"
	AttrSource      = "worker.source"
	AttrCacheHit    = "worker.cache_hit"
	AttrQueue       = "worker.queue"
	AttrState       = "worker.state"
	AttrVersion     = "worker.version"
)

// StartFetchSpan starts a span for an intercepted request.
func StartFetchSpan(ctx context.Context, method, url string) (context.Context, trace.Span) {
	return StartSpan(ctx, "worker.fetch",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String(AttrMethod, method),
			attribute.String(AttrURL, url),
		),
	)
}

// StartStrategySpan starts a span for a strategy execution.
func StartStrategySpan(ctx context.Context, strategy, namespace string) (context.Context, trace.Span) {
	return StartSpan(ctx, "worker.strategy",
		trace.WithAttributes(
			attribute.String(AttrStrategy, strategy),
			attribute.String(AttrNamespace, namespace),
		),
	)
}

// StartReplaySpan starts a span for an outbox replay pass.
func StartReplaySpan(ctx context.Context, queue string) (context.Context, trace.Span) {
	return StartSpan(ctx, "worker.replay",
		trace.WithAttributes(attribute.String(AttrQueue, queue)),
	)
}

// EndFetchSpan records the response outcome and ends the span.
func EndFetchSpan(span trace.Span, status int, source string, cacheHit bool) {
	span.SetAttributes(
		attribute.Int(AttrStatus, status),
		attribute.String(AttrSource, source),
		attribute.Bool(AttrCacheHit, cacheHit),
	)
	span.End()
}
