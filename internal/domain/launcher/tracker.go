package launcher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/instance"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/window"
	"github.com/SerVas333/WindowsLauncher/backend/internal/shared/id"
)

// TrackerOptions tune how process-less instances are judged closed.
type TrackerOptions struct {
	// Grace is how long after launch a missing window still counts as
	// starting up.
	Grace time.Duration
	// Misses is how many consecutive checks must miss a previously seen
	// window before the instance counts as closed.
	Misses int
}

// DefaultTrackerOptions returns the tracker defaults.
func DefaultTrackerOptions() TrackerOptions {
	return TrackerOptions{Grace: 15 * time.Second, Misses: 2}
}

type tracked struct {
	launched time.Time
	seen     bool
	closing  bool
	misses   int
	last     *window.Ref
}

// windowTracker infers liveness from window presence for kinds without an
// owned process. A window that never appears within the grace period counts
// as closed, as does one that disappears for Misses consecutive checks.
type windowTracker struct {
	windows *window.Manager
	opts    TrackerOptions
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.Mutex
	state map[id.InstanceID]*tracked
}

func newWindowTracker(windows *window.Manager, opts TrackerOptions, logger *zap.Logger) *windowTracker {
	if opts.Grace <= 0 {
		opts.Grace = DefaultTrackerOptions().Grace
	}
	if opts.Misses <= 0 {
		opts.Misses = DefaultTrackerOptions().Misses
	}
	return &windowTracker{
		windows: windows,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
		state:   make(map[id.InstanceID]*tracked),
	}
}

func (t *windowTracker) start(instanceID id.InstanceID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state[instanceID] = &tracked{launched: t.now()}
}

func (t *windowTracker) forget(instanceID id.InstanceID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.state, instanceID)
}

func (t *windowTracker) entry(inst instance.Instance) *tracked {
	s, ok := t.state[inst.ID]
	if !ok {
		s = &tracked{launched: inst.LaunchedAt, last: inst.Tracking.Window}
		t.state[inst.ID] = s
	}
	return s
}

// find returns the instance's current window, preferring the last one seen.
func (t *windowTracker) find(ctx context.Context, inst instance.Instance) (*window.Ref, error) {
	t.mu.Lock()
	last := t.entry(inst).last
	t.mu.Unlock()

	if last != nil {
		exists, err := t.windows.Exists(ctx, *last)
		if err != nil {
			return nil, err
		}
		if exists {
			return last, nil
		}
	}
	return t.windows.FindWindowFor(ctx, inst.Tracking.Query())
}

func (t *windowTracker) alive(ctx context.Context, inst instance.Instance) bool {
	ref, err := t.find(ctx, inst)

	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.entry(inst)

	if err != nil {
		// An unreadable window list says nothing about the application.
		t.logger.Debug("Window lookup failed", zap.String("instance_id", inst.ID.String()), zap.Error(err))
		return true
	}
	if ref != nil {
		s.seen = true
		s.misses = 0
		s.last = ref
		return true
	}
	if s.closing {
		return false
	}
	if !s.seen {
		return t.now().Sub(s.launched) < t.opts.Grace
	}
	s.misses++
	return s.misses < t.opts.Misses
}

func (t *windowTracker) lastWindow(inst instance.Instance) *window.Ref {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.state[inst.ID]; ok && s.last != nil {
		ref := *s.last
		return &ref
	}
	return nil
}

// markClosing ends the grace period: from now on a missing window means the
// instance is closed.
func (t *windowTracker) markClosing(inst instance.Instance) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(inst).closing = true
}

// requestClose posts a close to the instance's window. With no window left
// there is nothing to close, which counts as delivered.
func (t *windowTracker) requestClose(ctx context.Context, inst instance.Instance) bool {
	t.markClosing(inst)
	ref, err := t.find(ctx, inst)
	if err != nil {
		return false
	}
	if ref == nil {
		return true
	}
	return t.windows.RequestClose(ctx, *ref) == nil
}

func (t *windowTracker) forceClose(ctx context.Context, inst instance.Instance) bool {
	t.markClosing(inst)
	ref, err := t.find(ctx, inst)
	if err != nil {
		return false
	}
	if ref == nil {
		return true
	}
	return t.windows.ForceClose(ctx, *ref) == nil
}
