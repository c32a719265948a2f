package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics tracks the relay from outbox_events to Pub/Sub.
// A nil *OutboxMetrics is a valid no-op recorder.
type OutboxMetrics struct {
	events *prometheus.CounterVec
	lag    prometheus.Histogram
	batch  prometheus.Histogram
}

// NewOutboxMetrics registers the relay metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockhold_outbox_events_total",
		Help: "Outbox rows handled by the relay, by event type and result.",
	}, []string{"event_type", "result"})
	lag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "stockhold_outbox_publish_lag_seconds",
		Help:    "Time between an event being queued and its successful publish.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 15, 60, 300},
	})
	batch := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "stockhold_outbox_batch_duration_seconds",
		Help:    "Duration of one relay batch transaction.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(events, lag, batch)
	return &OutboxMetrics{events: events, lag: lag, batch: batch}
}

// IncEvent counts one row; result is "published", "retry" or "dead_lettered".
func (m *OutboxMetrics) IncEvent(eventType, result string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}

// ObserveLag records queue-to-publish latency.
func (m *OutboxMetrics) ObserveLag(lag time.Duration) {
	if m == nil || m.lag == nil || lag < 0 {
		return
	}
	m.lag.Observe(lag.Seconds())
}

// ObserveBatch records the duration of one batch.
func (m *OutboxMetrics) ObserveBatch(duration time.Duration) {
	if m == nil || m.batch == nil {
		return
	}
	m.batch.Observe(duration.Seconds())
}
