package process

import (
	"errors"
	"fmt"
)

// Start failure classes.
var (
	ErrTargetNotFound   = errors.New("target not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrSpawnFailed      = errors.New("spawn failed")
)

// StartError describes a failed process start.
type StartError struct {
	Path  string
	Class error // one of ErrTargetNotFound, ErrPermissionDenied, ErrSpawnFailed
	Err   error
}

func (e *StartError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("start %s: %v", e.Path, e.Class)
	}
	return fmt.Sprintf("start %s: %v: %v", e.Path, e.Class, e.Err)
}

// Unwrap exposes both the class and the underlying cause to errors.Is.
func (e *StartError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Class}
	}
	return []error{e.Class, e.Err}
}
