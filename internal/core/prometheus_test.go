package core

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	ctx := context.Background()
	rec.Observe(ctx, "add_animal", true, 15*time.Millisecond)
	rec.Observe(ctx, "add_animal", false, 5*time.Millisecond)
	rec.Observe(ctx, "", true, time.Second)

	success := testutil.ToFloat64(rec.results.WithLabelValues("add_animal", string(AuditStatusSuccess)))
	if success != 1 {
		t.Fatalf("expected 1 success, got %v", success)
	}
	failure := testutil.ToFloat64(rec.results.WithLabelValues("add_animal", string(AuditStatusError)))
	if failure != 1 {
		t.Fatalf("expected 1 error, got %v", failure)
	}
	if got := testutil.CollectAndCount(rec.durations); got != 1 {
		t.Fatalf("expected one histogram series, got %d", got)
	}
}

func TestPrometheusMetricsRecorderDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheusMetricsRecorder(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestPrometheusMetricsRecorderAsServiceSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	svc := NewInMemoryService(DefaultRulesEngine(), WithMetricsRecorder(rec))
	if _, _, err := svc.AddAnimal(context.Background(), AnimalInput{Name: "Rex", Species: "dog", Age: 1, Description: "x"}); err != nil {
		t.Fatalf("add animal: %v", err)
	}
	if got := testutil.ToFloat64(rec.results.WithLabelValues("add_animal", string(AuditStatusSuccess))); got != 1 {
		t.Fatalf("expected service operation counted, got %v", got)
	}
}
