package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	api "github.com/SerVas333/WindowsLauncher/backend/internal/api/http"
	"github.com/SerVas333/WindowsLauncher/backend/internal/api/middleware"
	"github.com/SerVas333/WindowsLauncher/backend/internal/api/ws"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/catalog"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/events"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/launcher"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/lifecycle"
	"github.com/SerVas333/WindowsLauncher/backend/internal/infrastructure/config"
	"github.com/SerVas333/WindowsLauncher/backend/internal/infrastructure/logging"
	"github.com/SerVas333/WindowsLauncher/backend/internal/infrastructure/monitoring"
	"github.com/SerVas333/WindowsLauncher/backend/internal/infrastructure/resilience"
	"github.com/SerVas333/WindowsLauncher/backend/internal/infrastructure/scheduling"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/android"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/audit"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/process"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/window"
)

// Server wraps the HTTP server and the lifecycle core behind it
type Server struct {
	config    *config.Config
	logger    *logging.Logger
	metrics   *monitoring.Metrics
	scheduler *scheduling.Scheduler
	bus       *events.Bus
	audit     *audit.Store
	android   *android.ADBBridge
	catalog   *catalog.FileProvider
	lifecycle *lifecycle.Service
	router    *gin.Engine
	http      *http.Server

	shutdownRequested chan struct{}
	stopAndroidFeed   func()
}

// NewServer builds every component from cfg. Nothing runs until Run.
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	logger.Info("Initializing launcherd",
		zap.String("addr", cfg.Server.Addr),
		zap.String("catalog", cfg.Catalog.Path),
		zap.Bool("android", cfg.Android.Enabled),
		zap.String("window_backend", cfg.Window.Backend))

	// Metrics first; every other component reports into them.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(reg)

	provider, err := catalog.NewFileProvider(cfg.Catalog.Path, logger.Component("catalog"))
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	backend, err := window.NewBackend(cfg.Window.Backend, cfg.Window.WmctrlPath, logger.Component("window"))
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:            cfg,
		logger:            logger,
		metrics:           metrics,
		catalog:           provider,
		shutdownRequested: make(chan struct{}, 1),
	}

	var sinks []events.Sink
	if cfg.Audit.Enabled {
		store, err := audit.Open(cfg.Audit.Path, logger.Component("audit"))
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		s.audit = store
		sinks = append(sinks, store)
	}

	scheduler, err := scheduling.NewScheduler(logger.Component("scheduler"))
	if err != nil {
		s.closeStores()
		return nil, err
	}
	s.scheduler = scheduler
	s.bus = events.NewBus(logger.Component("events"), sinks...)

	windows := window.NewManager(backend, logger.Component("window"))
	executor := process.NewExecutor(logger.Component("process"))

	s.android = android.NewADBBridge(android.Options{
		Enabled:        cfg.Android.Enabled,
		ADBPath:        cfg.Android.ADBPath,
		Serial:         cfg.Android.Serial,
		CommandTimeout: cfg.Android.CommandTimeout,
		Breaker: resilience.Settings{
			FailureThreshold: 3,
			Cooldown:         30 * time.Second,
		},
	}, nil, logger.Component("android"))

	editor := launcher.NewTextEditor(windows, logger.Logger)
	launchers := launcher.NewSet(
		launcher.NewDesktop(executor, windows, logger.Logger),
		launcher.NewWeb(launcher.WebOptions{
			Opener:           launcher.DefaultOpener(cfg.Browser.Opener),
			Preflight:        cfg.Browser.Preflight,
			PreflightTimeout: cfg.Browser.PreflightTimeout,
			Tracker:          launcher.DefaultTrackerOptions(),
		}, executor, windows, logger.Logger),
		launcher.NewFolder(launcher.DefaultOpener(cfg.Browser.Opener), launcher.DefaultTrackerOptions(), executor, windows, logger.Logger),
		launcher.NewEmbeddedBrowser(launcher.EmbeddedOptions{
			ExecPath:    cfg.Browser.ExecPath,
			ProfileRoot: cfg.Browser.ProfileDir,
		}, windows, logger.Logger),
		editor,
		launcher.NewAndroid(s.android, windows, logger.Logger),
	)

	s.lifecycle = lifecycle.New(lifecycle.Options{
		Launchers:       launchers,
		Windows:         windows,
		Scheduler:       scheduler,
		MonitorInterval: cfg.Lifecycle.MonitorInterval,
		GracefulTimeout: cfg.Lifecycle.GracefulTimeout,
		FinalTimeout:    cfg.Lifecycle.FinalTimeout,
		ConfirmPoll:     cfg.Lifecycle.ConfirmPoll,
		Publisher:       s.bus,
		Metrics:         metrics,
		Logger:          logger.Logger,
	})

	handlers := api.NewHandlers(api.Options{
		Lifecycle: s.lifecycle,
		Catalog:   provider,
		Android:   s.android,
		Audit:     s.auditLog(),
		Editor:    editor,
		Metrics:   metrics,
		Gatherer:  reg,
		Timeouts: api.Timeouts{
			Close:      cfg.Lifecycle.CloseTimeout,
			UserSwitch: cfg.Lifecycle.UserSwitchTimeout,
			Graceful:   cfg.Lifecycle.GracefulTimeout,
			Final:      cfg.Lifecycle.FinalTimeout,
		},
		OnShutdown: s.requestShutdown,
		Logger:     logger.Logger,
	})
	wsHandler := ws.NewHandler(s.bus, metrics, logger.Logger, nil)

	// Setup Gin router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLog(logger.Component("http")))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins...)))
	if cfg.RateLimit.Enabled {
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers.Register(router)
	router.GET("/events", wsHandler.HandleConnection)

	s.router = router
	s.http = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server initialized successfully",
		zap.Strings("kinds", kindNames(launchers.Kinds())),
		zap.Int("catalog_size", len(provider.All())))
	return s, nil
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Lifecycle returns the lifecycle service.
func (s *Server) Lifecycle() *lifecycle.Service {
	return s.lifecycle
}

// auditLog avoids handing the API a typed nil interface.
func (s *Server) auditLog() api.AuditLog {
	if s.audit == nil {
		return nil
	}
	return s.audit
}

func (s *Server) requestShutdown() {
	select {
	case s.shutdownRequested <- struct{}{}:
	default:
	}
}

func kindNames(kinds []catalog.Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
