// Package prometheus provides the Prometheus implementations of the worker's
// metrics interfaces. Importing this package (usually blank-imported by the
// daemon entrypoint) registers the constructors with pkg/metrics.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wirecache/wirecache/pkg/cachestore"
	"github.com/wirecache/wirecache/pkg/metrics"
)

func init() {
	metrics.RegisterCacheStoreMetricsConstructor(newCacheStoreMetrics)
}

// cacheStoreMetrics is the Prometheus implementation of cachestore.Metrics.
type cacheStoreMetrics struct {
	puts             *prometheus.CounterVec
	putBytes         *prometheus.HistogramVec
	matches          *prometheus.CounterVec
	evictions        *prometheus.CounterVec
	namespaceDeletes prometheus.Counter
}

func newCacheStoreMetrics() cachestore.Metrics {
	reg := metrics.GetRegistry()

	return &cacheStoreMetrics{
		puts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "wirecache_store_puts_total",
				Help: "Total number of cache entry writes by namespace",
			},
			[]string{"namespace"},
		),
		putBytes: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "wirecache_store_put_bytes",
				Help: "Distribution of stored response body sizes",
				Buckets: []float64{
					1024,    // 1KB - small API payloads
					8192,    // 8KB
					65536,   // 64KB - typical page asset
					262144,  // 256KB
					1048576, // 1MB
					5242880, // 5MB - large images
				},
			},
			[]string{"namespace"},
		),
		matches: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "wirecache_store_matches_total",
				Help: "Total number of cache lookups by namespace and outcome",
			},
			[]string{"namespace", "status"}, // status: "hit", "miss"
		),
		evictions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "wirecache_store_evictions_total",
				Help: "Total number of entries evicted by trim or expiry",
			},
			[]string{"namespace"},
		),
		namespaceDeletes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "wirecache_store_namespace_deletes_total",
				Help: "Total number of namespaces deleted during activation cleanup",
			},
		),
	}
}

func (m *cacheStoreMetrics) ObservePut(namespace string, bytes int) {
	m.puts.WithLabelValues(namespace).Inc()
	m.putBytes.WithLabelValues(namespace).Observe(float64(bytes))
}

func (m *cacheStoreMetrics) ObserveMatch(namespace string, hit bool) {
	status := "miss"
	if hit {
		status = "hit"
	}
	m.matches.WithLabelValues(namespace, status).Inc()
}

func (m *cacheStoreMetrics) ObserveEviction(namespace string, evicted int) {
	m.evictions.WithLabelValues(namespace).Add(float64(evicted))
}

func (m *cacheStoreMetrics) ObserveNamespaceDeleted(namespace string) {
	m.namespaceDeletes.Inc()
}
