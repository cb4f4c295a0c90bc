// Package middleware holds the gin middleware shared by the control API:
// CORS for the presentation layer, per-client rate limiting and request
// logging with request ids.
package middleware
