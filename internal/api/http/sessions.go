package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/lifecycle"
	"github.com/SerVas333/WindowsLauncher/backend/internal/shared/utils"
)

// CloseUser closes every instance owned by a user ending their session.
// The response lists each instance that could not be confirmed closed.
func (h *Handlers) CloseUser(c *gin.Context) {
	user := c.Param("user")
	if err := utils.ValidateUser(user, true); err != nil {
		failure(c, http.StatusBadRequest, err)
		return
	}
	timeout, ok := durationQuery(c, "timeout", h.opts.Timeouts.UserSwitch)
	if !ok {
		return
	}

	result := h.opts.Lifecycle.CloseAllForUser(c.Request.Context(), user, timeout)
	c.JSON(bulkStatus(result), result)
}

// Shutdown closes every instance and refuses further launches.
func (h *Handlers) Shutdown(c *gin.Context) {
	graceful, ok := durationQuery(c, "graceful", h.opts.Timeouts.Graceful)
	if !ok {
		return
	}
	final, ok := durationQuery(c, "final", h.opts.Timeouts.Final)
	if !ok {
		return
	}

	h.logger.Info("Shutdown requested", zap.String("client", c.ClientIP()))
	result := h.opts.Lifecycle.ShutdownAll(c.Request.Context(), graceful, final)
	c.JSON(bulkStatus(result), result)

	if h.opts.OnShutdown != nil {
		h.opts.OnShutdown()
	}
}

// bulkStatus answers 207 when some instances could not be closed; the body
// carries the per-instance outcome either way.
func bulkStatus(result lifecycle.ShutdownResult) int {
	if result.Success {
		return http.StatusOK
	}
	return http.StatusMultiStatus
}
