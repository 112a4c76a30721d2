package core

import (
	"context"
	"testing"
	"time"

	"sheltercore/pkg/domain"
)

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus, predicate func(AuditEntry) bool) bool {
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			if predicate == nil || predicate(entry) {
				return true
			}
		}
	}
	return false
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

type spanRecord struct {
	op  string
	err error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	for _, record := range c.ended {
		if record.op == op {
			if success && record.err == nil {
				return true
			}
			if !success && record.err != nil {
				return true
			}
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

func TestServiceObservabilityLifecycle(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}

	svc := NewInMemoryService(DefaultRulesEngine(),
		WithAuditRecorder(audit),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
	)

	animal, _, err := svc.AddAnimal(ctx, AnimalInput{Name: "Rex", Species: "dog", Age: 3, Description: "friendly"})
	if err != nil {
		t.Fatalf("add animal: %v", err)
	}
	if !audit.has("add_animal", AuditStatusSuccess, func(entry AuditEntry) bool { return entry.EntityID == "1" }) {
		t.Fatalf("expected audit entry for add_animal success, got %+v", audit.entries)
	}
	if !metrics.has("add_animal", true) {
		t.Fatalf("expected metrics entry for add_animal")
	}
	if !tracer.has("add_animal", true) {
		t.Fatalf("expected trace span for add_animal")
	}

	if _, _, err := svc.RegisterUser(ctx, "alice", "alice@example.com", "pw"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := svc.RequestAdoption(ctx, animal.ID, "alice"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if !audit.has("request_adoption", AuditStatusSuccess, func(entry AuditEntry) bool {
		return entry.EntityID == domain.RequestKey(animal.ID, "alice")
	}) {
		t.Fatalf("expected audit entry keyed by pair, got %+v", audit.entries)
	}

	if _, err := svc.RemoveAnimal(ctx, 404); err == nil {
		t.Fatalf("expected remove_animal error for missing id")
	}
	if !audit.has("remove_animal", AuditStatusError, func(entry AuditEntry) bool { return entry.Error != "" }) {
		t.Fatalf("expected audit error entry for remove_animal")
	}
	if !metrics.has("remove_animal", false) {
		t.Fatalf("expected metrics entry for failed remove_animal")
	}
	if !tracer.has("remove_animal", false) {
		t.Fatalf("expected trace span for failed remove_animal")
	}

	if _, err := svc.DecideRequest(ctx, animal.ID, "alice", DecisionAccept); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !audit.has("decide_request", AuditStatusSuccess, nil) {
		t.Fatalf("expected audit entry for decide_request")
	}
	if len(tracer.started) != len(tracer.ended) {
		t.Fatalf("expected every span to be ended, started=%d ended=%d", len(tracer.started), len(tracer.ended))
	}
}
