package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/catalog"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/events"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/instance"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/launcher"
	"github.com/SerVas333/WindowsLauncher/backend/internal/shared/id"
)

// fakeLauncher keeps instances "running" until a close it honors.
type fakeLauncher struct {
	kind  catalog.Kind
	title string

	mu             sync.Mutex
	running        map[id.InstanceID]bool
	launchErr      error
	block          chan struct{}
	entered        chan struct{}
	ignoreGraceful bool
	ignoreForce    bool
	noGraceful     bool
	gracefulDelay  time.Duration
	graceful       int
	forced         int
	released       int
}

func newFakeLauncher(kind catalog.Kind) *fakeLauncher {
	return &fakeLauncher{kind: kind, running: make(map[id.InstanceID]bool)}
}

func (f *fakeLauncher) Kind() catalog.Kind { return f.kind }

func (f *fakeLauncher) Launch(_ context.Context, req launcher.Request) (instance.Tracking, error) {
	f.mu.Lock()
	block, entered, launchErr := f.block, f.entered, f.launchErr
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if launchErr != nil {
		return instance.Tracking{}, launchErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.running[req.InstanceID] = true
	return instance.Tracking{TitlePattern: f.title}, nil
}

func (f *fakeLauncher) IsStillRunning(_ context.Context, inst instance.Instance) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running[inst.ID]
}

func (f *fakeLauncher) RequestGracefulClose(_ context.Context, inst instance.Instance) bool {
	f.mu.Lock()
	f.graceful++
	delay := f.gracefulDelay
	f.mu.Unlock()
	time.Sleep(delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noGraceful {
		return false
	}
	if !f.ignoreGraceful {
		delete(f.running, inst.ID)
	}
	return true
}

func (f *fakeLauncher) ForceClose(_ context.Context, inst instance.Instance) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forced++
	if !f.ignoreForce {
		delete(f.running, inst.ID)
	}
	return true
}

func (f *fakeLauncher) Release(instance.Instance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
}

func (f *fakeLauncher) exit(instanceID id.InstanceID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.running, instanceID)
}

func (f *fakeLauncher) counts() (graceful, forced, released int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.graceful, f.forced, f.released
}

// recorder is an events.Publisher that keeps everything.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(t events.Type) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func desktopDef(name string) catalog.Definition {
	return catalog.Definition{ID: name, Name: name, Kind: catalog.KindDesktop, Target: "/opt/" + name}
}

func newTestService(rec *recorder, launchers ...launcher.Launcher) *Service {
	return New(Options{
		Launchers:       launcher.NewSet(launchers...),
		GracefulTimeout: 200 * time.Millisecond,
		FinalTimeout:    200 * time.Millisecond,
		ConfirmPoll:     10 * time.Millisecond,
		Publisher:       rec,
	})
}
