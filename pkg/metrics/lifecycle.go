package metrics

import (
	"github.com/wirecache/wirecache/pkg/lifecycle"
)

// NewLifecycleMetrics creates a Prometheus-backed lifecycle.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewLifecycleMetrics() lifecycle.Metrics {
	if !IsEnabled() || newPrometheusLifecycleMetrics == nil {
		return nil
	}
	return newPrometheusLifecycleMetrics()
}

var newPrometheusLifecycleMetrics func() lifecycle.Metrics

// RegisterLifecycleMetricsConstructor registers the Prometheus constructor.
// Called by pkg/metrics/prometheus during package initialization.
func RegisterLifecycleMetricsConstructor(constructor func() lifecycle.Metrics) {
	newPrometheusLifecycleMetrics = constructor
}
