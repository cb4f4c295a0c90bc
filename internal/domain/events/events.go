package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type names an event.
type Type string

const (
	TypeLaunchSucceeded  Type = "launch.succeeded"
	TypeLaunchFailed     Type = "launch.failed"
	TypeInstanceCrashed  Type = "instance.crashed"
	TypeInstanceClosed   Type = "instance.closed"
	TypeCloseFailed      Type = "instance.close_failed"
	TypeShutdownComplete Type = "shutdown.completed"
	TypeUserClosed       Type = "user.closed"
	TypeAndroidStatus    Type = "android.status"
)

// Event is a structured record of something the lifecycle core did.
type Event struct {
	ID           string         `json:"id" db:"id"`
	Type         Type           `json:"type" db:"type"`
	At           time.Time      `json:"at" db:"at"`
	InstanceID   string         `json:"instance_id,omitempty" db:"instance_id"`
	Owner        string         `json:"owner,omitempty" db:"owner"`
	DefinitionID string         `json:"definition_id,omitempty" db:"definition_id"`
	Kind         string         `json:"kind,omitempty" db:"kind"`
	Detail       string         `json:"detail,omitempty" db:"detail"`
	Data         map[string]any `json:"data,omitempty" db:"-"`
}

// New creates an event with a fresh id and timestamp.
func New(t Type) Event {
	return Event{ID: uuid.NewString(), Type: t, At: time.Now().UTC()}
}

// Sink records events, typically to durable storage.
type Sink interface {
	Record(ctx context.Context, e Event) error
}

// Publisher is what the lifecycle core emits events through.
type Publisher interface {
	Publish(e Event)
}
