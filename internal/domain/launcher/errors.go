package launcher

import (
	"errors"
	"fmt"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/catalog"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/android"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/process"
)

// Reason is the machine-readable cause of a failed launch.
type Reason string

const (
	ReasonTargetNotFound       Reason = "target-not-found"
	ReasonPermissionDenied     Reason = "permission-denied"
	ReasonSpawnFailed          Reason = "spawn-failed"
	ReasonNotExecutable        Reason = "not-executable"
	ReasonInvalidDefinition    Reason = "invalid-definition"
	ReasonUnreachable          Reason = "unreachable"
	ReasonSubsystemUnavailable Reason = "subsystem-unavailable"
	ReasonUnsupportedKind      Reason = "unsupported-kind"
	ReasonSessionEnding        Reason = "session-ending"
	ReasonShuttingDown         Reason = "shutting-down"
)

// Sentinels matched by errors.Is against a *LaunchError.
var (
	ErrLaunchFailed         = errors.New("launch failed")
	ErrSubsystemUnavailable = errors.New("subsystem unavailable")
)

// LaunchError describes why an application could not be started.
type LaunchError struct {
	Reason       Reason
	Kind         catalog.Kind
	DefinitionID string
	Detail       string
	// Status is the Android subsystem status for subsystem-unavailable failures.
	Status android.Status
	Err    error
}

func (e *LaunchError) Error() string {
	msg := fmt.Sprintf("launch %s (%s): %s", e.DefinitionID, e.Kind, e.Reason)
	if e.Status != "" {
		msg += fmt.Sprintf(" (subsystem %s)", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// Is matches ErrLaunchFailed for every launch error and
// ErrSubsystemUnavailable for subsystem failures.
func (e *LaunchError) Is(target error) bool {
	switch target {
	case ErrLaunchFailed:
		return true
	case ErrSubsystemUnavailable:
		return e.Reason == ReasonSubsystemUnavailable
	}
	return false
}

// Fail builds a LaunchError for def.
func Fail(def catalog.Definition, reason Reason, detail string, err error) *LaunchError {
	return &LaunchError{
		Reason:       reason,
		Kind:         def.Kind,
		DefinitionID: def.ID,
		Detail:       detail,
		Err:          err,
	}
}

// fromStart maps an executor failure to a launch failure.
func fromStart(def catalog.Definition, err error) *LaunchError {
	switch {
	case errors.Is(err, process.ErrTargetNotFound):
		return Fail(def, ReasonTargetNotFound, "", err)
	case errors.Is(err, process.ErrPermissionDenied):
		return Fail(def, ReasonPermissionDenied, "", err)
	default:
		return Fail(def, ReasonSpawnFailed, "", err)
	}
}
