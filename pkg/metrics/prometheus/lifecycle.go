package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wirecache/wirecache/pkg/lifecycle"
	"github.com/wirecache/wirecache/pkg/metrics"
)

func init() {
	metrics.RegisterLifecycleMetricsConstructor(newLifecycleMetrics)
}

// lifecycleMetrics is the Prometheus implementation of lifecycle.Metrics.
type lifecycleMetrics struct {
	transitions *prometheus.CounterVec
}

func newLifecycleMetrics() lifecycle.Metrics {
	reg := metrics.GetRegistry()

	return &lifecycleMetrics{
		transitions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "wirecache_lifecycle_transitions_total",
				Help: "Total number of worker lifecycle state transitions",
			},
			[]string{"from", "to"},
		),
	}
}

func (m *lifecycleMetrics) ObserveTransition(from, to lifecycle.State) {
	m.transitions.WithLabelValues(from.String(), to.String()).Inc()
}
