package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReservationMetrics tracks reservation outcomes, ledger contention and ERP calls.
// A nil *ReservationMetrics is a valid no-op recorder.
type ReservationMetrics struct {
	items        *prometheus.CounterVec
	conflicts    prometheus.Counter
	transitions  *prometheus.CounterVec
	erpCalls     *prometheus.CounterVec
	erpLatency   prometheus.Histogram
	compensation *prometheus.CounterVec
}

// NewReservationMetrics registers the reservation metrics on the provided registerer.
func NewReservationMetrics(reg prometheus.Registerer) *ReservationMetrics {
	if reg == nil {
		return &ReservationMetrics{}
	}
	items := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockhold_reservation_items_total",
		Help: "Reservation request items by outcome.",
	}, []string{"outcome"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stockhold_ledger_conflicts_total",
		Help: "Optimistic concurrency conflicts observed on inventory records.",
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockhold_reservation_transitions_total",
		Help: "Reservations leaving the active state, by target status.",
	}, []string{"status"})
	erpCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockhold_erp_calls_total",
		Help: "External stock bridge calls by result code.",
	}, []string{"result"})
	erpLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "stockhold_erp_call_duration_seconds",
		Help:    "Latency of external stock bridge calls.",
		Buckets: prometheus.DefBuckets,
	})
	compensation := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockhold_reservation_compensations_total",
		Help: "Compensating ledger releases after a failed reservation write.",
	}, []string{"result"})
	reg.MustRegister(items, conflicts, transitions, erpCalls, erpLatency, compensation)
	return &ReservationMetrics{
		items:        items,
		conflicts:    conflicts,
		transitions:  transitions,
		erpCalls:     erpCalls,
		erpLatency:   erpLatency,
		compensation: compensation,
	}
}

// IncItem counts one processed reservation item; outcome is "reserved" or a failure kind.
func (m *ReservationMetrics) IncItem(outcome string) {
	if m == nil || m.items == nil {
		return
	}
	m.items.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncConflict counts one lost compare-and-swap on an inventory record.
func (m *ReservationMetrics) IncConflict() {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.Inc()
}

// IncTransition counts a reservation leaving the active state.
func (m *ReservationMetrics) IncTransition(status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status)).Inc()
}

// ObserveERPCall records one bridge call; result is "ok" or the ERP error code.
func (m *ReservationMetrics) ObserveERPCall(result string, duration time.Duration) {
	if m == nil || m.erpCalls == nil {
		return
	}
	m.erpCalls.WithLabelValues(normalizeLabel(result)).Inc()
	if m.erpLatency != nil {
		m.erpLatency.Observe(duration.Seconds())
	}
}

// IncCompensation counts a compensating release; result is "ok" or "failed".
func (m *ReservationMetrics) IncCompensation(result string) {
	if m == nil || m.compensation == nil {
		return
	}
	m.compensation.WithLabelValues(normalizeLabel(result)).Inc()
}
