// Package config provides 12-factor configuration for launcherd.
//
// Configuration is loaded from environment variables with defaults; CLI flags
// override individual values.
//
// Sections:
//   - Server: control API listen address and CORS origins
//   - Lifecycle: monitor interval, graceful/final/user-switch timeouts
//   - Catalog, Audit: file locations for the external collaborators
//   - Android, Browser, Window: launcher backends
//   - RateLimit: per-client rate limiting of the control API
//
// Example:
//
//	cfg := config.LoadOrDefault()
//	fmt.Println(cfg.Lifecycle.GracefulTimeout)
package config
