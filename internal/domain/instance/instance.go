package instance

import (
	"time"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/catalog"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/process"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/window"
	"github.com/SerVas333/WindowsLauncher/backend/internal/shared/id"
)

// Tracking is the launcher-owned observation data for an instance.
type Tracking struct {
	Process *process.Handle
	Window  *window.Ref
	// Surface is the id of an in-process surface, if any.
	Surface string
	// Package is the Android package name.
	Package string
	// TitlePattern is the glob used to find the window of process-less kinds.
	TitlePattern string
}

// Query returns the window query describing this tracking data.
func (t Tracking) Query() window.Query {
	q := window.Query{TitlePattern: t.TitlePattern, SurfaceID: t.Surface}
	if t.Process != nil {
		q.PID = t.Process.PID()
	}
	return q
}

// Instance is one launched application.
type Instance struct {
	ID         id.InstanceID
	Definition catalog.Definition
	Owner      string
	Kind       catalog.Kind
	Tracking   Tracking
	State      State
	LaunchedAt time.Time
	LastSeenAt time.Time
}

// PID returns the process id, or 0 when the instance has no process.
func (i Instance) PID() int {
	if i.Tracking.Process == nil {
		return 0
	}
	return i.Tracking.Process.PID()
}

// Summary is the serializable view of an instance.
type Summary struct {
	ID           string       `json:"id"`
	DefinitionID string       `json:"definition_id"`
	Name         string       `json:"name"`
	Owner        string       `json:"owner"`
	Kind         catalog.Kind `json:"kind"`
	State        State        `json:"state"`
	PID          int          `json:"pid,omitempty"`
	Window       *window.Ref  `json:"window,omitempty"`
	LaunchedAt   time.Time    `json:"launched_at"`
	LastSeenAt   time.Time    `json:"last_seen_at"`
}

// Summary returns the serializable view.
func (i Instance) Summary() Summary {
	return Summary{
		ID:           i.ID.String(),
		DefinitionID: i.Definition.ID,
		Name:         i.Definition.DisplayName(),
		Owner:        i.Owner,
		Kind:         i.Kind,
		State:        i.State,
		PID:          i.PID(),
		Window:       i.Tracking.Window,
		LaunchedAt:   i.LaunchedAt,
		LastSeenAt:   i.LastSeenAt,
	}
}
