package launcher

import (
	"context"
	"sort"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/catalog"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/instance"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/window"
	"github.com/SerVas333/WindowsLauncher/backend/internal/shared/id"
)

// Request is a launch of one definition for one user.
type Request struct {
	InstanceID id.InstanceID
	Definition catalog.Definition
	Owner      string
}

// Launcher starts and stops applications of one kind.
type Launcher interface {
	Kind() catalog.Kind
	// Launch starts the target and returns what is needed to observe it.
	// Failures are *LaunchError.
	Launch(ctx context.Context, req Request) (instance.Tracking, error)
	// RequestGracefulClose asks the application to close and reports whether
	// the request was delivered. It does not wait for the application to exit.
	RequestGracefulClose(ctx context.Context, inst instance.Instance) bool
	// ForceClose terminates the application unconditionally and reports
	// whether termination was issued.
	ForceClose(ctx context.Context, inst instance.Instance) bool
	IsStillRunning(ctx context.Context, inst instance.Instance) bool
	// Release frees launcher-side resources once the instance is terminal.
	Release(inst instance.Instance)
}

// WindowReporter is implemented by launchers that learn an instance's
// window while checking liveness.
type WindowReporter interface {
	LastWindow(inst instance.Instance) *window.Ref
}

// Set dispatches to one launcher per kind.
type Set struct {
	byKind map[catalog.Kind]Launcher
}

// NewSet builds a dispatch table. A later launcher for the same kind
// replaces an earlier one.
func NewSet(launchers ...Launcher) *Set {
	s := &Set{byKind: make(map[catalog.Kind]Launcher, len(launchers))}
	for _, l := range launchers {
		s.byKind[l.Kind()] = l
	}
	return s
}

// For returns the launcher for kind.
func (s *Set) For(kind catalog.Kind) (Launcher, bool) {
	l, ok := s.byKind[kind]
	return l, ok
}

// Kinds lists the kinds with a launcher.
func (s *Set) Kinds() []catalog.Kind {
	kinds := make([]catalog.Kind, 0, len(s.byKind))
	for k := range s.byKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
