package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all launcherd configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	Lifecycle LifecycleConfig
	Catalog   CatalogConfig
	Audit     AuditConfig
	Android   AndroidConfig
	Browser   BrowserConfig
	Window    WindowConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds the control API settings.
type ServerConfig struct {
	Addr        string   `envconfig:"LAUNCHER_HTTP_ADDR" default:"127.0.0.1:8470"`
	CORSOrigins []string `envconfig:"LAUNCHER_CORS_ORIGINS" default:"http://localhost:5173"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// LifecycleConfig holds monitoring and shutdown timing.
type LifecycleConfig struct {
	MonitorInterval   time.Duration `envconfig:"LIFECYCLE_MONITOR_INTERVAL" default:"2s"`
	CloseTimeout      time.Duration `envconfig:"LIFECYCLE_CLOSE_TIMEOUT" default:"5s"`
	GracefulTimeout   time.Duration `envconfig:"LIFECYCLE_GRACEFUL_TIMEOUT" default:"5s"`
	FinalTimeout      time.Duration `envconfig:"LIFECYCLE_FINAL_TIMEOUT" default:"3s"`
	UserSwitchTimeout time.Duration `envconfig:"LIFECYCLE_USER_SWITCH_TIMEOUT" default:"5s"`
	ConfirmPoll       time.Duration `envconfig:"LIFECYCLE_CONFIRM_POLL" default:"50ms"`
}

// CatalogConfig points at the application definitions.
type CatalogConfig struct {
	Path string `envconfig:"LAUNCHER_CATALOG" default:"catalog"`
	// ReloadInterval rereads the catalog periodically; zero disables it.
	ReloadInterval time.Duration `envconfig:"LAUNCHER_CATALOG_RELOAD" default:"1m"`
}

// AuditConfig holds the audit sink settings.
type AuditConfig struct {
	Enabled   bool          `envconfig:"AUDIT_ENABLED" default:"true"`
	Path      string        `envconfig:"AUDIT_DB" default:"launcher-audit.db"`
	Retention time.Duration `envconfig:"AUDIT_RETENTION" default:"720h"`
}

// AndroidConfig holds the Android subsystem bridge settings.
type AndroidConfig struct {
	Enabled        bool          `envconfig:"ANDROID_ENABLED" default:"true"`
	ADBPath        string        `envconfig:"ANDROID_ADB_PATH" default:"adb"`
	Serial         string        `envconfig:"ANDROID_SERIAL" default:"127.0.0.1:58526"`
	PollInterval   time.Duration `envconfig:"ANDROID_POLL_INTERVAL" default:"5s"`
	CommandTimeout time.Duration `envconfig:"ANDROID_COMMAND_TIMEOUT" default:"10s"`
}

// BrowserConfig holds the web and embedded-browser launcher settings.
type BrowserConfig struct {
	ExecPath         string        `envconfig:"BROWSER_EXEC_PATH"`
	ProfileDir       string        `envconfig:"BROWSER_PROFILE_DIR" default:"profiles"`
	Opener           string        `envconfig:"BROWSER_OPENER"`
	Preflight        bool          `envconfig:"WEB_PREFLIGHT" default:"false"`
	PreflightTimeout time.Duration `envconfig:"WEB_PREFLIGHT_TIMEOUT" default:"5s"`
}

// WindowConfig selects the window enumeration backend.
type WindowConfig struct {
	Backend    string `envconfig:"WINDOW_BACKEND" default:"auto"` // auto, wmctrl, none
	WmctrlPath string `envconfig:"WINDOW_WMCTRL_PATH" default:"wmctrl"`
}

// RateLimitConfig holds control API rate limiting.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"20"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"40"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects timings that would make shutdown unbounded or spin.
func (c *Config) Validate() error {
	lc := c.Lifecycle
	switch {
	case lc.MonitorInterval <= 0:
		return fmt.Errorf("LIFECYCLE_MONITOR_INTERVAL must be positive")
	case lc.GracefulTimeout <= 0, lc.FinalTimeout <= 0, lc.CloseTimeout <= 0, lc.UserSwitchTimeout <= 0:
		return fmt.Errorf("lifecycle timeouts must be positive")
	case lc.ConfirmPoll <= 0:
		return fmt.Errorf("LIFECYCLE_CONFIRM_POLL must be positive")
	}
	switch c.Window.Backend {
	case "auto", "wmctrl", "none":
	default:
		return fmt.Errorf("unknown WINDOW_BACKEND %q", c.Window.Backend)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        "127.0.0.1:8470",
			CORSOrigins: []string{"http://localhost:5173"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Lifecycle: LifecycleConfig{
			MonitorInterval:   2 * time.Second,
			CloseTimeout:      5 * time.Second,
			GracefulTimeout:   5 * time.Second,
			FinalTimeout:      3 * time.Second,
			UserSwitchTimeout: 5 * time.Second,
			ConfirmPoll:       50 * time.Millisecond,
		},
		Catalog: CatalogConfig{
			Path:           "catalog",
			ReloadInterval: time.Minute,
		},
		Audit: AuditConfig{
			Enabled:   true,
			Path:      "launcher-audit.db",
			Retention: 720 * time.Hour,
		},
		Android: AndroidConfig{
			Enabled:        true,
			ADBPath:        "adb",
			Serial:         "127.0.0.1:58526",
			PollInterval:   5 * time.Second,
			CommandTimeout: 10 * time.Second,
		},
		Browser: BrowserConfig{
			ProfileDir:       "profiles",
			Preflight:        false,
			PreflightTimeout: 5 * time.Second,
		},
		Window: WindowConfig{
			Backend:    "auto",
			WmctrlPath: "wmctrl",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			Enabled:           true,
		},
	}
}
