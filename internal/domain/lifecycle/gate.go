package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/catalog"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/launcher"
	"github.com/SerVas333/WindowsLauncher/backend/internal/shared/id"
)

// flight tracks launches in progress by their pre-allocated instance ids,
// mapped to the launching user. idle is closed while no launch is in
// progress.
type flight struct {
	ids  map[id.InstanceID]string
	idle chan struct{}
}

func newFlight() *flight {
	idle := make(chan struct{})
	close(idle)
	return &flight{ids: make(map[id.InstanceID]string), idle: idle}
}

func (f *flight) add(instanceID id.InstanceID, owner string) {
	if len(f.ids) == 0 {
		f.idle = make(chan struct{})
	}
	f.ids[instanceID] = owner
}

func (f *flight) done(instanceID id.InstanceID) {
	if _, ok := f.ids[instanceID]; !ok {
		return
	}
	delete(f.ids, instanceID)
	if len(f.ids) == 0 {
		close(f.idle)
	}
}

// ticket is an admitted launch. gen is the seal generation at admission.
type ticket struct {
	instanceID id.InstanceID
	owner      string
	gen        uint64
	leave      func()
}

// gate admits launches and lets bulk closes seal users or the whole service
// and wait for launches already in flight.
//
// Every seal of a user bumps a generation counter. A launch admitted before
// a seal stays refused after the seal is released, so a session switch that
// stopped waiting for it can never be followed by its instance.
type gate struct {
	mu     sync.Mutex
	closed bool
	sealed map[string]int
	seals  uint64
	// sealedAt is the generation of the latest seal per user. Entries are
	// kept only while the user is sealed or has launches in flight.
	sealedAt map[string]uint64
	owners   map[string]*flight
	all      *flight
}

func newGate() *gate {
	return &gate{
		sealed:   make(map[string]int),
		sealedAt: make(map[string]uint64),
		owners:   make(map[string]*flight),
		all:      newFlight(),
	}
}

// enter admits a launch for owner. The ticket's leave func must be called
// once the launch has either registered its instance or failed.
func (g *gate) enter(def catalog.Definition, owner string, instanceID id.InstanceID) (*ticket, *launcher.LaunchError) {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := &ticket{instanceID: instanceID, owner: owner, gen: g.seals}
	if err := g.refusal(def, t); err != nil {
		return nil, err
	}

	f, ok := g.owners[owner]
	if !ok {
		f = newFlight()
		g.owners[owner] = f
	}
	f.add(instanceID, owner)
	g.all.add(instanceID, owner)

	var once sync.Once
	t.leave = func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			f.done(instanceID)
			g.all.done(instanceID)
			if len(f.ids) == 0 && g.owners[owner] == f {
				delete(g.owners, owner)
				g.forget(owner)
			}
		})
	}
	return t, nil
}

// check returns the error an admitted launch is refused with now.
func (g *gate) check(def catalog.Definition, t *ticket) *launcher.LaunchError {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refusal(def, t)
}

func (g *gate) refusal(def catalog.Definition, t *ticket) *launcher.LaunchError {
	if g.closed {
		return launcher.Fail(def, launcher.ReasonShuttingDown, "launcher is shutting down", nil)
	}
	if g.sealed[t.owner] > 0 || g.sealedAt[t.owner] > t.gen {
		return launcher.Fail(def, launcher.ReasonSessionEnding, "session of "+t.owner+" is ending", nil)
	}
	return nil
}

// forget drops the seal generation of owner once nothing can consult it.
// Called with mu held.
func (g *gate) forget(owner string) {
	if g.sealed[owner] > 0 {
		return
	}
	if _, inFlight := g.owners[owner]; inFlight {
		return
	}
	delete(g.sealedAt, owner)
}

// sealUser blocks new launches for owner until the returned func is called.
// idle is closed once every launch for owner admitted before the seal ended.
func (g *gate) sealUser(owner string) (release func(), idle <-chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seals++
	g.sealed[owner]++
	g.sealedAt[owner] = g.seals
	idle = newFlight().idle
	if f, ok := g.owners[owner]; ok {
		idle = f.idle
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			if g.sealed[owner]--; g.sealed[owner] <= 0 {
				delete(g.sealed, owner)
			}
			g.forget(owner)
		})
	}, idle
}

// close blocks every further launch. The returned channel is closed once
// every launch admitted before has ended.
func (g *gate) close() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return g.all.idle
}

// pending returns the launches still in flight for owner, or for every
// user when owner is empty, keyed by instance id.
func (g *gate) pending(owner string) map[id.InstanceID]string {
	g.mu.Lock()
	defer g.mu.Unlock()

	f := g.all
	if owner != "" {
		var ok bool
		if f, ok = g.owners[owner]; !ok {
			return nil
		}
	}
	out := make(map[id.InstanceID]string, len(f.ids))
	for instanceID, launchOwner := range f.ids {
		out[instanceID] = launchOwner
	}
	return out
}

// drained waits for idle at most timeout.
func drained(ctx context.Context, idle <-chan struct{}, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-idle:
		return true
	case <-timer.C:
	case <-ctx.Done():
	}
	select {
	case <-idle:
		return true
	default:
		return false
	}
}
