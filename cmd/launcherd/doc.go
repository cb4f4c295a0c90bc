// Package main is the entry point for launcherd, the application lifecycle
// daemon behind the desktop shell.
//
// Architecture:
//
//	Shell UI → control API (HTTP + /events WebSocket) → lifecycle core
//	Session coordinator → close-user / shutdown → lifecycle core
//
// Configuration:
//   - Environment variables (see internal/infrastructure/config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Run the daemon
//	launcherd serve --catalog /etc/launcher/apps --dev
//
//	# Check a catalog before deploying it
//	launcherd catalog --path /etc/launcher/apps --role user
//
//	# On logout, from the session coordinator
//	launcherd close-user alice --timeout 5s
//
//	# Before host shutdown
//	launcherd shutdown
package main
