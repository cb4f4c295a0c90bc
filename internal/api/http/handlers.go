package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/catalog"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/events"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/instance"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/launcher"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/lifecycle"
	"github.com/SerVas333/WindowsLauncher/backend/internal/infrastructure/monitoring"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/android"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/audit"
	"github.com/SerVas333/WindowsLauncher/backend/internal/shared/id"
)

// Lifecycle is the part of lifecycle.Service the control API drives.
type Lifecycle interface {
	Launch(ctx context.Context, def catalog.Definition, owner string) (lifecycle.LaunchResult, error)
	CloseOne(ctx context.Context, instanceID id.InstanceID, timeout time.Duration) lifecycle.CloseResult
	CloseAllForUser(ctx context.Context, user string, timeout time.Duration) lifecycle.ShutdownResult
	ShutdownAll(ctx context.Context, graceful, final time.Duration) lifecycle.ShutdownResult
	Instances(user string) []instance.Summary
	Instance(instanceID id.InstanceID) (instance.Instance, error)
	Focus(ctx context.Context, instanceID id.InstanceID) error
}

// AuditLog answers event history queries.
type AuditLog interface {
	Query(ctx context.Context, f audit.Filter) ([]events.Event, error)
}

// Editor exposes the buffers of text-editor instances.
type Editor interface {
	Buffer(inst instance.Instance) (*launcher.Buffer, bool)
}

// Timeouts are the defaults applied when a request does not name one.
type Timeouts struct {
	Close      time.Duration
	UserSwitch time.Duration
	Graceful   time.Duration
	Final      time.Duration
}

// Options wires the handlers. Android, Audit, Editor and Gatherer are
// optional; their endpoints answer 404 or 503 without them.
type Options struct {
	Lifecycle Lifecycle
	Catalog   catalog.Provider
	Android   android.Bridge
	Audit     AuditLog
	Editor    Editor
	Metrics   *monitoring.Metrics
	Gatherer  prometheus.Gatherer
	Timeouts  Timeouts
	// OnShutdown runs after a shutdown request has been answered.
	OnShutdown func()
	Logger     *zap.Logger
}

// Handlers contains all HTTP handlers
type Handlers struct {
	opts    Options
	started time.Time
	logger  *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(opts Options) *Handlers {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{opts: opts, started: time.Now(), logger: logger.Named("api")}
}

// Health handles the liveness check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":    "healthy",
		"service":   "launcherd",
		"instances": len(h.opts.Lifecycle.Instances("")),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
	}
	if h.opts.Android != nil {
		body["android"] = h.opts.Android.Status()
	}
	c.JSON(http.StatusOK, body)
}

func failure(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func instanceParam(c *gin.Context) (id.InstanceID, bool) {
	instanceID, err := id.ParseInstanceID(c.Param("id"))
	if err != nil {
		failure(c, http.StatusBadRequest, err)
		return "", false
	}
	return instanceID, true
}

// durationQuery reads an optional Go duration such as "5s" from the query.
func durationQuery(c *gin.Context, key string, fallback time.Duration) (time.Duration, bool) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		failure(c, http.StatusBadRequest, fmt.Errorf("invalid %s %q", key, raw))
		return 0, false
	}
	return d, true
}

func (h *Handlers) lookupInstance(c *gin.Context) (instance.Instance, bool) {
	instanceID, ok := instanceParam(c)
	if !ok {
		return instance.Instance{}, false
	}
	inst, err := h.opts.Lifecycle.Instance(instanceID)
	if errors.Is(err, instance.ErrInstanceNotFound) {
		failure(c, http.StatusNotFound, err)
		return instance.Instance{}, false
	}
	if err != nil {
		failure(c, http.StatusInternalServerError, err)
		return instance.Instance{}, false
	}
	return inst, true
}
