// Package middleware provides HTTP middleware for the ingress API.
package middleware

import (
	"net/http"

	"github.com/erp/clinicsync/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TraceIDHeader carries the server span's trace id on every traced response.
const TraceIDHeader = "X-Trace-ID"

// Limits on header values copied into logs and spans.
const (
	MaxRequestIDLength  = 128
	MaxDeliveryIDLength = 128
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "clinicsync",
		Enabled:     true,
	}
}

// Tracing returns OpenTelemetry tracing middleware with default configuration.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig wraps otelgin. Span names follow "METHOD route".
// otelgin ends the span before returning, so request attributes are added
// by SpanErrorMarker which runs inside it.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passThrough
	}
	return otelgin.Middleware(cfg.ServiceName)
}

func enrichSpanWithAttributes(c *gin.Context, span trace.Span) {
	if id := c.GetString(RequestIDKey); id != "" {
		span.SetAttributes(attribute.String("request_id", id))
	}
	if id := c.GetString(DeliveryIDKey); id != "" {
		span.SetAttributes(attribute.String("delivery_id", id))
	}
	if rt := c.Param("resourceType"); rt != "" {
		span.SetAttributes(attribute.String("resource_type", rt))
	}
}

// SpanErrorMarker copies request_id, delivery_id and resource_type onto the
// server span and marks it with error status for 4xx responses.
// Place it after Tracing and DeliveryID.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}
		enrichSpanWithAttributes(c, span)
		if traceID := telemetry.GetTraceID(c.Request.Context()); traceID != "" {
			c.Header(TraceIDHeader, traceID)
		}

		c.Next()

		// otelgin owns the status of 5xx spans and sets it after this returns.
		statusCode := c.Writer.Status()
		if statusCode < http.StatusBadRequest || statusCode >= http.StatusInternalServerError {
			return
		}
		var message string
		switch {
		case statusCode == http.StatusUnauthorized:
			message = "Unauthorized"
		case statusCode == http.StatusNotFound:
			message = "Not Found"
		default:
			message = "Client Error"
		}
		span.SetStatus(codes.Error, message)
		span.SetAttributes(attribute.Int("http.status_code", statusCode))
	}
}
