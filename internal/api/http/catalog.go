package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/catalog"
	"github.com/SerVas333/WindowsLauncher/backend/internal/shared/utils"
)

// ListCatalog lists the definitions a user may launch
func (h *Handlers) ListCatalog(c *gin.Context) {
	user := catalog.User{Name: c.Query("user"), Role: catalog.Role(c.DefaultQuery("role", string(catalog.RoleUser)))}
	if !user.Role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown role " + string(user.Role)})
		return
	}
	if err := utils.ValidateUser(user.Name, false); err != nil {
		failure(c, http.StatusBadRequest, err)
		return
	}

	defs, err := h.opts.Catalog.Definitions(c.Request.Context(), user)
	if err != nil {
		failure(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"applications": defs,
		"count":        len(defs),
	})
}

// AndroidStatus reports the Android subsystem readiness
func (h *Handlers) AndroidStatus(c *gin.Context) {
	if h.opts.Android == nil {
		c.JSON(http.StatusOK, gin.H{"status": "disabled", "configured": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": h.opts.Android.Status(), "configured": true})
}
