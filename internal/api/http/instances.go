package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/catalog"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/instance"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/launcher"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/lifecycle"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/window"
	"github.com/SerVas333/WindowsLauncher/backend/internal/shared/utils"
)

// LaunchRequest asks for a catalog definition to be started for a user.
type LaunchRequest struct {
	DefinitionID string       `json:"definition_id" binding:"required"`
	User         string       `json:"user" binding:"required"`
	Role         catalog.Role `json:"role"`
}

// ListInstances lists running instances, optionally for one user
func (h *Handlers) ListInstances(c *gin.Context) {
	user := c.Query("user")
	if err := utils.ValidateUser(user, false); err != nil {
		failure(c, http.StatusBadRequest, err)
		return
	}
	list := h.opts.Lifecycle.Instances(user)
	c.JSON(http.StatusOK, gin.H{
		"instances": list,
		"count":     len(list),
	})
}

// GetInstance returns one instance
func (h *Handlers) GetInstance(c *gin.Context) {
	inst, ok := h.lookupInstance(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"instance": inst.Summary(),
	})
}

// LaunchInstance resolves a definition through the catalog and launches it
func (h *Handlers) LaunchInstance(c *gin.Context) {
	var req LaunchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, err)
		return
	}
	if err := validateLaunch(req); err != nil {
		failure(c, http.StatusBadRequest, err)
		return
	}
	if req.Role == "" {
		req.Role = catalog.RoleUser
	}

	ctx := c.Request.Context()
	def, err := h.opts.Catalog.Definition(ctx, catalog.User{Name: req.User, Role: req.Role}, req.DefinitionID)
	if errors.Is(err, catalog.ErrNotFound) {
		failure(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		failure(c, http.StatusInternalServerError, err)
		return
	}

	result, err := h.opts.Lifecycle.Launch(ctx, def, req.User)
	if err != nil {
		var launchErr *launcher.LaunchError
		if !errors.As(err, &launchErr) {
			h.logger.Error("Launch failed unexpectedly", zap.String("definition_id", def.ID), zap.Error(err))
			failure(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(launchStatus(launchErr.Reason), result)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// launchStatus maps a launch failure reason to an HTTP status.
func launchStatus(reason launcher.Reason) int {
	switch reason {
	case launcher.ReasonSubsystemUnavailable:
		return http.StatusServiceUnavailable
	case launcher.ReasonSessionEnding, launcher.ReasonShuttingDown:
		return http.StatusConflict
	case launcher.ReasonInvalidDefinition, launcher.ReasonUnsupportedKind:
		return http.StatusUnprocessableEntity
	case launcher.ReasonUnreachable:
		return http.StatusBadGateway
	default:
		return http.StatusFailedDependency
	}
}

// CloseInstance runs the close sequence for one instance. Closing an unknown
// instance succeeds.
func (h *Handlers) CloseInstance(c *gin.Context) {
	instanceID, ok := instanceParam(c)
	if !ok {
		return
	}
	timeout, ok := durationQuery(c, "timeout", h.opts.Timeouts.Close)
	if !ok {
		return
	}

	result := h.opts.Lifecycle.CloseOne(c.Request.Context(), instanceID, timeout)
	status := http.StatusOK
	var timeoutErr *lifecycle.CloseTimeoutError
	if errors.As(result.Err, &timeoutErr) {
		status = http.StatusGatewayTimeout
	} else if !result.Success {
		status = http.StatusInternalServerError
	}
	c.JSON(status, result)
}

// FocusInstance brings an instance's window to the front
func (h *Handlers) FocusInstance(c *gin.Context) {
	instanceID, ok := instanceParam(c)
	if !ok {
		return
	}

	err := h.opts.Lifecycle.Focus(c.Request.Context(), instanceID)
	switch {
	case errors.Is(err, instance.ErrInstanceNotFound):
		failure(c, http.StatusNotFound, err)
	case errors.Is(err, lifecycle.ErrNoWindow), errors.Is(err, window.ErrUnknownRef):
		failure(c, http.StatusConflict, err)
	case errors.Is(err, window.ErrNoBackend):
		failure(c, http.StatusNotImplemented, err)
	case err != nil:
		failure(c, http.StatusInternalServerError, err)
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":     true,
			"instance_id": instanceID,
		})
	}
}

func validateLaunch(req LaunchRequest) error {
	if err := utils.ValidateID(req.DefinitionID, "definition_id", true); err != nil {
		return err
	}
	return utils.ValidateUser(req.User, true)
}
