package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()), "missing logger yields a no-op logger")

	base := zap.NewExample()
	ctx := WithContext(context.Background(), base)
	assert.Same(t, base, FromContext(ctx))
}

func TestDeliveryContext(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx, _ := WithDeliveryID(context.Background(), base, "delivery-1")
	ctx, _ = WithEventType(ctx, FromContext(ctx), "c")
	ctx, enriched := WithCorrelationKey(ctx, FromContext(ctx), "visit-9")

	assert.Equal(t, "delivery-1", GetDeliveryID(ctx))
	assert.Equal(t, "c", GetEventType(ctx))
	assert.Equal(t, "visit-9", GetCorrelationKey(ctx))
	assert.Empty(t, GetRequestID(ctx))

	enriched.Info("dispatched")
	require.Equal(t, 1, recorded.Len())
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "delivery-1", fields["delivery_id"])
	assert.Equal(t, "c", fields["event_type"])
	assert.Equal(t, "visit-9", fields["correlation_key"])
}

func TestContextLogger_InjectsContextFields(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)

	ctx := WithContext(context.Background(), zap.New(core))
	ctx = context.WithValue(ctx, RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, DeliveryIDKey, "delivery-2")

	L(ctx).With(zap.String("stage", "lookup")).Warn("slow lookup")

	require.Equal(t, 1, recorded.Len())
	entry := recorded.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "delivery-2", fields["delivery_id"])
	assert.Equal(t, "lookup", fields["stage"])
	assert.NotContains(t, fields, "correlation_key")
	assert.NotContains(t, fields, "trace_id")
}

func TestContextLogger_TraceCorrelation(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	WithLogger(ctx, zap.New(core)).Info("traced")

	require.Equal(t, 1, recorded.Len())
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", fields["span_id"])
}

func TestContextLogger_NilLogger(t *testing.T) {
	cl := WithLogger(context.Background(), nil)
	assert.NotPanics(t, func() {
		cl.Info("ignored")
		cl.With(zap.String("k", "v")).Error("ignored")
		_ = cl.Zap()
	})
}
