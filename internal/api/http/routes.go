package http

import "github.com/gin-gonic/gin"

// Register mounts the control API on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/health", h.Health)

	// Instances
	r.GET("/instances", h.ListInstances)
	r.POST("/instances", h.LaunchInstance)
	r.GET("/instances/:id", h.GetInstance)
	r.DELETE("/instances/:id", h.CloseInstance)
	r.POST("/instances/:id/focus", h.FocusInstance)

	// Text editor buffers
	r.GET("/instances/:id/buffer", h.GetBuffer)
	r.PUT("/instances/:id/buffer", h.UpdateBuffer)
	r.POST("/instances/:id/buffer/save", h.SaveBuffer)

	// Session coordination
	r.POST("/users/:user/close", h.CloseUser)
	r.POST("/shutdown", h.Shutdown)

	r.GET("/catalog", h.ListCatalog)
	r.GET("/android/status", h.AndroidStatus)
	r.GET("/audit", h.ListEvents)

	r.GET("/metrics", h.prometheusHandler())
	r.GET("/metrics/json", h.MetricsJSON)
}
