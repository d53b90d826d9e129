package router

import (
	"github.com/erp/clinicsync/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// EventRoutes mounts the event ingress
func EventRoutes(h *handler.EventHandler) *DomainGroup {
	return NewDomainGroup("events", "/events").
		POST("/:resourceType", h.Deliver).
		POST("/:resourceType/:id", h.DeliverReference)
}

// ReconciliationRoutes mounts the journal endpoints
func ReconciliationRoutes(h *handler.ReconciliationHandler) *DomainGroup {
	return NewDomainGroup("reconciliations", "/reconciliations").
		GET("", h.List).
		GET("/:id", h.Get).
		POST("/:id/replay", h.Replay)
}

// SystemRoutes mounts the system info endpoint
func SystemRoutes(h *handler.SystemHandler) *DomainGroup {
	return NewDomainGroup("system", "/system").
		GET("/info", h.GetSystemInfo)
}

// RegisterProbes mounts liveness and readiness on the engine root, outside
// the authenticated API group.
func RegisterProbes(engine gin.IRoutes, h *handler.SystemHandler) {
	engine.GET("/health", h.Health)
	engine.GET("/ready", h.Ready)
}
