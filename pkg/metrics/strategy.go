package metrics

import (
	"github.com/wirecache/wirecache/pkg/strategy"
)

// NewStrategyMetrics creates a Prometheus-backed strategy.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewStrategyMetrics() strategy.Metrics {
	if !IsEnabled() || newPrometheusStrategyMetrics == nil {
		return nil
	}
	return newPrometheusStrategyMetrics()
}

var newPrometheusStrategyMetrics func() strategy.Metrics

// RegisterStrategyMetricsConstructor registers the Prometheus constructor.
// Called by pkg/metrics/prometheus during package initialization.
func RegisterStrategyMetricsConstructor(constructor func() strategy.Metrics) {
	newPrometheusStrategyMetrics = constructor
}
