package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newSystemRouter(h *SystemHandler) *gin.Engine {
	router := gin.New()
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/api/v1/system/info", h.GetSystemInfo)
	return router
}

func TestSystemHandler_Health(t *testing.T) {
	w := serve(newSystemRouter(NewSystemHandler("clinicsync", "1.2.3")), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSystemHandler_Ready(t *testing.T) {
	ok := ReadinessCheck{Name: "database", Check: func(context.Context) error { return nil }}
	down := ReadinessCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }}

	t.Run("all up", func(t *testing.T) {
		w := serve(newSystemRouter(NewSystemHandler("clinicsync", "1", ok)), http.MethodGet, "/ready")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok","checks":{"database":"ok"}}`, w.Body.String())
	})

	t.Run("dependency down", func(t *testing.T) {
		w := serve(newSystemRouter(NewSystemHandler("clinicsync", "1", ok, down)), http.MethodGet, "/ready")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.JSONEq(t, `{"status":"unavailable","checks":{"database":"ok","redis":"connection refused"}}`, w.Body.String())
	})

	t.Run("checks are bounded", func(t *testing.T) {
		bounded := ReadinessCheck{Name: "s3", Check: func(ctx context.Context) error {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return nil
		}}
		w := serve(newSystemRouter(NewSystemHandler("clinicsync", "1", bounded)), http.MethodGet, "/ready")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestSystemHandler_Info(t *testing.T) {
	w := serve(newSystemRouter(NewSystemHandler("clinicsync", "1.2.3")), http.MethodGet, "/api/v1/system/info")
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode[SystemInfoResponse](t, w)
	assert.Equal(t, "clinicsync", resp.Data.Name)
	assert.Equal(t, "1.2.3", resp.Data.Version)
	assert.NotEmpty(t, resp.Data.GoVersion)
}
