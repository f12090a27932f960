package infrastructure

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// traceKey is the private context key type for trace correlation.
type traceKey struct{}

// NewTraceID returns a fresh UUIDv4 trace identifier.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID stores a trace ID in the context. Every log record
// emitted through the application logger with this context carries the
// ID, which is how an HTTP request, a pipeline run, and its stage logs
// are stitched together.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// GetTraceID returns the trace ID stored in the context, or "" when the
// context carries none.
func GetTraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

// ContextLogger returns the application logger bound to the context's
// trace ID, falling back to the plain logger for untraced contexts.
func ContextLogger(ctx context.Context) *slog.Logger {
	logger := GetLogger()
	if id := GetTraceID(ctx); id != "" {
		logger = logger.With(slog.String("trace_id", id))
	}
	return logger
}
