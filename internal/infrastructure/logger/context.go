package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// contextKey is a type for context keys used by the logger package
type contextKey string

const (
	// LoggerKey is the context key for the logger
	LoggerKey contextKey = "logger"
	// RequestIDKey is the context key for the HTTP request id
	RequestIDKey contextKey = "request_id"
	// DeliveryIDKey is the context key for the inbound delivery id
	DeliveryIDKey contextKey = "delivery_id"
	// CorrelationKeyKey is the context key for the visit id an event serializes on
	CorrelationKeyKey contextKey = "correlation_key"
	// EventTypeKey is the context key for the event tag
	EventTypeKey contextKey = "event_type"
)

// contextFields are copied from the context into every ContextLogger entry.
var contextFields = []contextKey{RequestIDKey, DeliveryIDKey, CorrelationKeyKey, EventTypeKey}

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context, returns a no-op logger if not found
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// withValue stores value under key and attaches a logger carrying it.
func withValue(ctx context.Context, logger *zap.Logger, key contextKey, value string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, key, value)
	enriched := logger.With(zap.String(string(key), value))
	return WithContext(ctx, enriched), enriched
}

// WithRequestID adds request ID to context and returns enriched logger
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	return withValue(ctx, logger, RequestIDKey, requestID)
}

// WithDeliveryID adds the delivery id to context and returns enriched logger
func WithDeliveryID(ctx context.Context, logger *zap.Logger, deliveryID string) (context.Context, *zap.Logger) {
	return withValue(ctx, logger, DeliveryIDKey, deliveryID)
}

// WithCorrelationKey adds the visit correlation key to context and returns enriched logger
func WithCorrelationKey(ctx context.Context, logger *zap.Logger, key string) (context.Context, *zap.Logger) {
	return withValue(ctx, logger, CorrelationKeyKey, key)
}

// WithEventType adds the event tag to context and returns enriched logger
func WithEventType(ctx context.Context, logger *zap.Logger, eventType string) (context.Context, *zap.Logger) {
	return withValue(ctx, logger, EventTypeKey, eventType)
}

func stringValue(ctx context.Context, key contextKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string { return stringValue(ctx, RequestIDKey) }

// GetDeliveryID retrieves the delivery id from context
func GetDeliveryID(ctx context.Context) string { return stringValue(ctx, DeliveryIDKey) }

// GetCorrelationKey retrieves the correlation key from context
func GetCorrelationKey(ctx context.Context) string { return stringValue(ctx, CorrelationKeyKey) }

// GetEventType retrieves the event tag from context
func GetEventType(ctx context.Context) string { return stringValue(ctx, EventTypeKey) }

// WithTraceContext adds trace_id and span_id to the logger from the context's span.
// If no valid span exists, returns the original logger unchanged.
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}

// ContextLogger injects trace ids and the delivery fields found in its
// context into every entry.
type ContextLogger struct {
	ctx    context.Context
	logger *zap.Logger
}

// L returns a ContextLogger from the given context.
// Usage: logger.L(ctx).Info("message", zap.String("key", "value"))
func L(ctx context.Context) *ContextLogger {
	return &ContextLogger{ctx: ctx, logger: FromContext(ctx)}
}

// WithLogger returns a ContextLogger using the provided logger instead of
// the one stored in ctx.
func WithLogger(ctx context.Context, logger *zap.Logger) *ContextLogger {
	return &ContextLogger{ctx: ctx, logger: logger}
}

func (cl *ContextLogger) enrichedLogger() *zap.Logger {
	l := cl.logger
	if l == nil {
		l = zap.NewNop()
	}
	l = WithTraceContext(cl.ctx, l)
	if fields := contextValueFields(cl.ctx); len(fields) > 0 {
		l = l.With(fields...)
	}
	return l
}

// contextValueFields returns the request and delivery values stored in ctx
// as zap fields.
func contextValueFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	for _, key := range contextFields {
		if v := stringValue(ctx, key); v != "" {
			fields = append(fields, zap.String(string(key), v))
		}
	}
	return fields
}

// With creates a child ContextLogger with additional fields.
func (cl *ContextLogger) With(fields ...zap.Field) *ContextLogger {
	base := cl.logger
	if base == nil {
		base = zap.NewNop()
	}
	return &ContextLogger{ctx: cl.ctx, logger: base.With(fields...)}
}

func (cl *ContextLogger) Debug(msg string, fields ...zap.Field) {
	cl.enrichedLogger().Debug(msg, fields...)
}

func (cl *ContextLogger) Info(msg string, fields ...zap.Field) {
	cl.enrichedLogger().Info(msg, fields...)
}

func (cl *ContextLogger) Warn(msg string, fields ...zap.Field) {
	cl.enrichedLogger().Warn(msg, fields...)
}

func (cl *ContextLogger) Error(msg string, fields ...zap.Field) {
	cl.enrichedLogger().Error(msg, fields...)
}

// Zap returns the underlying zap.Logger enriched with context fields, for
// APIs that take a *zap.Logger.
func (cl *ContextLogger) Zap() *zap.Logger {
	return cl.enrichedLogger()
}
