package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header and context keys shared by the ingress middleware and handlers
const (
	RequestIDHeader  = "X-Request-ID"
	DeliveryIDHeader = "X-Delivery-ID"
	RequestIDKey     = "request_id"
	DeliveryIDKey    = "delivery_id"
)

// RequestID adds a unique request ID to each request. An inbound id is kept
// when it is short enough to be safe in logs and spans.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > MaxRequestIDLength {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDKey, requestID)
		c.Writer.Header().Set(RequestIDHeader, requestID)
		c.Next()
	}
}

// DeliveryID exposes the sender's delivery id to the request logger and the
// tracing middleware. Handlers read the same header.
func DeliveryID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.GetHeader(DeliveryIDHeader); id != "" && len(id) <= MaxDeliveryIDLength {
			c.Set(DeliveryIDKey, id)
		}
		c.Next()
	}
}

// Timeout bounds the request context. Handlers waiting on the ingest queue
// give up when it expires.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
