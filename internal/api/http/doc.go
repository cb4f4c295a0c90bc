/*
Package http is the control API the presentation layer and the session
coordinator use to drive the lifecycle core.

# Endpoints

	GET    /health
	GET    /instances?user=
	POST   /instances                  {"definition_id", "user", "role"}
	GET    /instances/:id
	DELETE /instances/:id?timeout=5s
	POST   /instances/:id/focus
	GET    /instances/:id/buffer
	PUT    /instances/:id/buffer       {"content"}
	POST   /instances/:id/buffer/save
	POST   /users/:user/close?timeout=5s
	POST   /shutdown?graceful=5s&final=3s
	GET    /catalog?user=&role=
	GET    /android/status
	GET    /audit?user=&instance_id=&type=&since=&limit=
	GET    /metrics
	GET    /metrics/json

Failures answer {"success": false, "error": "..."}; launch and close
failures answer the full result object so callers see the reason.
*/
package http
