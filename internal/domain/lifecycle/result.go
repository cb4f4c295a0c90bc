package lifecycle

import (
	"fmt"
	"time"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/catalog"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/instance"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/launcher"
	"github.com/SerVas333/WindowsLauncher/backend/internal/shared/id"
)

// Method is how a close sequence ended.
type Method string

const (
	MethodGraceful      Method = "graceful"
	MethodForced        Method = "forced"
	MethodAlreadyClosed Method = "already-closed"
)

// Phase is the step of a close sequence that timed out.
type Phase string

const (
	PhaseGraceful Phase = "graceful"
	PhaseForced   Phase = "forced"
	// PhaseJoin is a caller giving up on a close sequence started by another
	// caller for the same instance.
	PhaseJoin Phase = "join"
	// PhaseDrain is a launch that was still in flight when a bulk close
	// ran out of time, or an instance such a launch registered.
	PhaseDrain Phase = "drain"
)

// CloseTimeoutError reports an instance that could not be confirmed closed.
type CloseTimeoutError struct {
	InstanceID id.InstanceID
	Phase      Phase
}

func (e *CloseTimeoutError) Error() string {
	return fmt.Sprintf("close %s: not confirmed after %s phase", e.InstanceID, e.Phase)
}

// LaunchResult summarizes a launch attempt.
type LaunchResult struct {
	Success      bool              `json:"success"`
	InstanceID   id.InstanceID     `json:"instance_id,omitempty"`
	Instance     *instance.Summary `json:"instance,omitempty"`
	DefinitionID string            `json:"definition_id"`
	Kind         catalog.Kind      `json:"kind"`
	Reason       launcher.Reason   `json:"reason,omitempty"`
	Error        string            `json:"error,omitempty"`
	Duration     time.Duration     `json:"duration"`
}

// CloseResult summarizes the close sequence of one instance.
type CloseResult struct {
	InstanceID   id.InstanceID `json:"instance_id"`
	Owner        string        `json:"owner,omitempty"`
	DefinitionID string        `json:"definition_id,omitempty"`
	Kind         catalog.Kind  `json:"kind,omitempty"`
	Success      bool          `json:"success"`
	Method       Method        `json:"method"`
	Duration     time.Duration `json:"duration"`
	Err          error         `json:"-"`
	Error        string        `json:"error,omitempty"`
}

func (r *CloseResult) fail(err error) {
	r.Success = false
	r.Err = err
	r.Error = err.Error()
}

// Scope of a bulk shutdown.
const (
	ScopeAll  = "all"
	ScopeUser = "user"
)

// ShutdownResult aggregates the close results of a bulk operation. Entries
// holds one result per affected instance; Failed lists every instance that
// could not be confirmed closed.
type ShutdownResult struct {
	Scope    string          `json:"scope"`
	User     string          `json:"user,omitempty"`
	Success  bool            `json:"success"`
	Entries  []CloseResult   `json:"entries"`
	Failed   []id.InstanceID `json:"failed"`
	Graceful int             `json:"graceful"`
	Forced   int             `json:"forced"`
	Duration time.Duration   `json:"duration"`
}

func newShutdownResult(scope, user string, entries []CloseResult, took time.Duration) ShutdownResult {
	res := ShutdownResult{
		Scope:    scope,
		User:     user,
		Entries:  entries,
		Failed:   []id.InstanceID{},
		Duration: took,
	}
	for _, e := range entries {
		switch {
		case !e.Success:
			res.Failed = append(res.Failed, e.InstanceID)
		case e.Method == MethodForced:
			res.Forced++
		case e.Method == MethodGraceful:
			res.Graceful++
		}
	}
	res.Success = len(res.Failed) == 0
	return res
}
