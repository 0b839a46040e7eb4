package metrics

import (
	"github.com/wirecache/wirecache/pkg/outbox"
)

// NewOutboxMetrics creates a Prometheus-backed outbox.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewOutboxMetrics() outbox.Metrics {
	if !IsEnabled() || newPrometheusOutboxMetrics == nil {
		return nil
	}
	return newPrometheusOutboxMetrics()
}

var newPrometheusOutboxMetrics func() outbox.Metrics

// RegisterOutboxMetricsConstructor registers the Prometheus constructor.
// Called by pkg/metrics/prometheus during package initialization.
func RegisterOutboxMetricsConstructor(constructor func() outbox.Metrics) {
	newPrometheusOutboxMetrics = constructor
}
