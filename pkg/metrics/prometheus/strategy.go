package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wirecache/wirecache/pkg/metrics"
	"github.com/wirecache/wirecache/pkg/strategy"
)

func init() {
	metrics.RegisterStrategyMetricsConstructor(newStrategyMetrics)
}

// strategyMetrics is the Prometheus implementation of strategy.Metrics.
type strategyMetrics struct {
	executions *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newStrategyMetrics() strategy.Metrics {
	reg := metrics.GetRegistry()

	return &strategyMetrics{
		executions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "wirecache_strategy_executions_total",
				Help: "Total number of strategy executions by kind and response source",
			},
			[]string{"strategy", "source"}, // source: "cache", "network", "fallback"
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "wirecache_strategy_duration_milliseconds",
				Help: "Duration of strategy executions in milliseconds",
				Buckets: []float64{
					1,    // 1ms - cache hits
					5,    // 5ms
					10,   // 10ms
					50,   // 50ms
					100,  // 100ms - fast origin
					500,  // 500ms
					1000, // 1s
					5000, // 5s - network-first timeout territory
				},
			},
			[]string{"strategy"},
		),
	}
}

func (m *strategyMetrics) ObserveExecution(kind, source string, duration time.Duration) {
	m.executions.WithLabelValues(kind, source).Inc()
	m.duration.WithLabelValues(kind).Observe(float64(duration.Milliseconds()))
}
