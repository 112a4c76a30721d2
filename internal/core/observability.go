package core

import (
	"context"
	"log/slog"
	"time"
)

// Logger is the minimal leveled logging contract the service depends on.
// Arguments follow the key-value convention.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

// noopLogger discards everything; the default when no logger is injected.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// slogLogger adapts *slog.Logger to the Logger contract.
type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps a slog logger for injection via WithLogger. A nil
// argument wraps slog.Default().
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return slogLogger{l: l}
}

func (s slogLogger) Debug(msg string, kv ...any) { s.l.Debug(msg, kv...) }
func (s slogLogger) Info(msg string, kv ...any)  { s.l.Info(msg, kv...) }
func (s slogLogger) Warn(msg string, kv ...any)  { s.l.Warn(msg, kv...) }
func (s slogLogger) Error(msg string, kv ...any) { s.l.Error(msg, kv...) }

// AuditStatus marks the outcome recorded for an audited operation.
type AuditStatus string

const (
	// AuditStatusSuccess marks a committed operation.
	AuditStatusSuccess AuditStatus = "success"
	// AuditStatusError marks a rejected or failed operation.
	AuditStatusError AuditStatus = "error"
)

// AuditEntry captures one service operation outcome for compliance trails.
type AuditEntry struct {
	Operation  string
	Status     AuditStatus
	EntityID   string
	Actor      string
	Error      string
	OccurredAt time.Time
}

// AuditRecorder receives audit entries for every service operation.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// MetricsRecorder observes per-operation outcomes and latency.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// TraceSpan terminates a trace started for a service operation.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// ServiceOption configures optional service collaborators.
type ServiceOption func(*Service)

// WithLogger injects a logger. The default discards all output.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuditRecorder injects an audit sink.
func WithAuditRecorder(rec AuditRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.audit = rec
		}
	}
}

// WithMetricsRecorder injects a metrics sink.
func WithMetricsRecorder(rec MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithTracer injects a tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithPhotoStore injects the blob store used for animal photo uploads.
func WithPhotoStore(store PhotoStore) ServiceOption {
	return func(s *Service) {
		if store != nil {
			s.photos = store
		}
	}
}

// WithOperatorCredential injects the operator login credential.
func WithOperatorCredential(cred OperatorCredential) ServiceOption {
	return func(s *Service) {
		s.operator = cred
	}
}

// WithClock overrides the service time source. Intended for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.nowFn = now
		}
	}
}
