package core

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusMetricsCountOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewPrometheusMetrics(reg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := NewPrometheusMetrics(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	f := newFixture(t, WithMetricsRecorder(metrics))
	if _, _, err := f.svc.SavePatient(f.ctx, Patient{Name: "Ana"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, _, err := f.svc.SavePatient(f.ctx, Patient{}); err == nil {
		t.Fatalf("expected nameless patient to be rejected")
	}
	if got := testutil.ToFloat64(metrics.Results().WithLabelValues("patient.save", "success")); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.Results().WithLabelValues("patient.save", "error")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.Results().WithLabelValues("vehicle.save", "success")); got != 1 {
		t.Fatalf("expected seeded vehicle to be counted, got %v", got)
	}
}
