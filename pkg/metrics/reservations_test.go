package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestReservationMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewReservationMetrics(reg)

	m.IncItem("reserved")
	m.IncItem("reserved")
	m.IncItem("insufficient_stock")
	m.IncConflict()
	m.IncTransition("expired")
	m.ObserveERPCall("TIMEOUT", 50*time.Millisecond)
	m.IncCompensation("ok")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "stockhold_reservation_items_total", "outcome", "reserved"); err != nil {
		t.Fatalf("fetch items: %v", err)
	} else if got != 2 {
		t.Fatalf("expected reserved=2, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "stockhold_reservation_transitions_total", "status", "expired"); err != nil {
		t.Fatalf("fetch transitions: %v", err)
	} else if got != 1 {
		t.Fatalf("expected expired=1, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "stockhold_erp_calls_total", "result", "TIMEOUT"); err != nil {
		t.Fatalf("fetch erp calls: %v", err)
	} else if got != 1 {
		t.Fatalf("expected TIMEOUT=1, got %f", got)
	}

	conflicts := findMetricFamily(mfs, "stockhold_ledger_conflicts_total")
	if conflicts == nil || len(conflicts.GetMetric()) != 1 || conflicts.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected one ledger conflict")
	}
}

func TestReservationMetricsNilSafe(t *testing.T) {
	var m *ReservationMetrics
	m.IncItem("reserved")
	m.IncConflict()
	m.IncTransition("released")
	m.ObserveERPCall("ok", time.Second)
	m.IncCompensation("failed")

	unregistered := NewReservationMetrics(nil)
	unregistered.IncItem("reserved")
}
