package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1:8470", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 2*time.Second, cfg.Lifecycle.MonitorInterval)
	assert.Equal(t, 5*time.Second, cfg.Lifecycle.GracefulTimeout)
	assert.Equal(t, 3*time.Second, cfg.Lifecycle.FinalTimeout)
	assert.Equal(t, "127.0.0.1:58526", cfg.Android.Serial)
	assert.Equal(t, "auto", cfg.Window.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"LAUNCHER_HTTP_ADDR":            "0.0.0.0:9000",
		"LAUNCHER_CORS_ORIGINS":         "http://a.local,http://b.local",
		"LOG_LEVEL":                     "debug",
		"LOG_DEV":                       "true",
		"LIFECYCLE_MONITOR_INTERVAL":    "500ms",
		"LIFECYCLE_GRACEFUL_TIMEOUT":    "1s",
		"LIFECYCLE_USER_SWITCH_TIMEOUT": "10s",
		"ANDROID_ENABLED":               "false",
		"WINDOW_BACKEND":                "none",
		"RATE_LIMIT_RPS":                "5",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500*time.Millisecond, cfg.Lifecycle.MonitorInterval)
	assert.Equal(t, time.Second, cfg.Lifecycle.GracefulTimeout)
	assert.Equal(t, 10*time.Second, cfg.Lifecycle.UserSwitchTimeout)
	assert.False(t, cfg.Android.Enabled)
	assert.Equal(t, "none", cfg.Window.Backend)
	assert.Equal(t, 5, cfg.RateLimit.RequestsPerSecond)

	// untouched values keep their defaults
	assert.Equal(t, 3*time.Second, cfg.Lifecycle.FinalTimeout)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero graceful timeout", "LIFECYCLE_GRACEFUL_TIMEOUT", "0s"},
		{"negative monitor interval", "LIFECYCLE_MONITOR_INTERVAL", "-1s"},
		{"unknown window backend", "WINDOW_BACKEND", "quartz"},
		{"unparsable duration", "LIFECYCLE_FINAL_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)

			assert.Equal(t, Default(), LoadOrDefault())
		})
	}
}
