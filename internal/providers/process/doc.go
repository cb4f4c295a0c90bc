// Package process starts OS processes for launched applications and exposes
// handles for liveness checks, graceful termination and kill.
//
// Children are started in their own process group so that terminating an
// application also reaches the helpers it spawned.
package process
