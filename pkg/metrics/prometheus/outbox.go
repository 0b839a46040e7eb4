package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wirecache/wirecache/pkg/metrics"
	"github.com/wirecache/wirecache/pkg/outbox"
)

func init() {
	metrics.RegisterOutboxMetricsConstructor(newOutboxMetrics)
}

// outboxMetrics is the Prometheus implementation of outbox.Metrics.
type outboxMetrics struct {
	enqueued       prometheus.Counter
	delivered      prometheus.Counter
	replayFailures prometheus.Counter
}

func newOutboxMetrics() outbox.Metrics {
	reg := metrics.GetRegistry()

	return &outboxMetrics{
		enqueued: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "wirecache_outbox_enqueued_total",
				Help: "Total number of write requests queued while offline",
			},
		),
		delivered: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "wirecache_outbox_delivered_total",
				Help: "Total number of queued writes delivered to the origin",
			},
		),
		replayFailures: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "wirecache_outbox_replay_failures_total",
				Help: "Total number of replay passes stopped by a delivery failure",
			},
		),
	}
}

func (m *outboxMetrics) ObserveEnqueue()       { m.enqueued.Inc() }
func (m *outboxMetrics) ObserveDelivered()     { m.delivered.Inc() }
func (m *outboxMetrics) ObserveReplayFailure() { m.replayFailures.Inc() }
