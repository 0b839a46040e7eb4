package metrics

import (
	"github.com/wirecache/wirecache/pkg/cachestore"
)

// NewCacheStoreMetrics creates a Prometheus-backed cachestore.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called). A nil
// return is valid: the store skips observation entirely.
func NewCacheStoreMetrics() cachestore.Metrics {
	if !IsEnabled() || newPrometheusCacheStoreMetrics == nil {
		return nil
	}
	return newPrometheusCacheStoreMetrics()
}

// newPrometheusCacheStoreMetrics is implemented in pkg/metrics/prometheus.
// The indirection avoids an import cycle while keeping the API clean.
var newPrometheusCacheStoreMetrics func() cachestore.Metrics

// RegisterCacheStoreMetricsConstructor registers the Prometheus constructor.
// Called by pkg/metrics/prometheus during package initialization.
func RegisterCacheStoreMetricsConstructor(constructor func() cachestore.Metrics) {
	newPrometheusCacheStoreMetrics = constructor
}
