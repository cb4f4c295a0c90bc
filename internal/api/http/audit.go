package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/events"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/audit"
)

const maxAuditLimit = 1000

// ListEvents queries the audit history. since accepts RFC 3339 or a
// duration relative to now ("1h").
func (h *Handlers) ListEvents(c *gin.Context) {
	if h.opts.Audit == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "audit log disabled"})
		return
	}

	f, err := auditFilter(c, time.Now())
	if err != nil {
		failure(c, http.StatusBadRequest, err)
		return
	}

	list, err := h.opts.Audit.Query(c.Request.Context(), f)
	if err != nil {
		failure(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events": list,
		"count":  len(list),
	})
}

func auditFilter(c *gin.Context, now time.Time) (audit.Filter, error) {
	f := audit.Filter{
		Owner:      c.Query("user"),
		InstanceID: c.Query("instance_id"),
	}
	for _, t := range c.QueryArray("type") {
		f.Types = append(f.Types, events.Type(t))
	}

	if raw := c.Query("since"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			f.Since = now.Add(-d)
		} else if at, err := time.Parse(time.RFC3339, raw); err == nil {
			f.Since = at
		} else {
			return f, fmt.Errorf("invalid since %q", raw)
		}
	}

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return f, fmt.Errorf("invalid limit %q", raw)
		}
		f.Limit = min(n, maxAuditLimit)
	}
	return f, nil
}
