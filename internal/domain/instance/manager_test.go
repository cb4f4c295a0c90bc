package instance

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/catalog"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/window"
	"github.com/SerVas333/WindowsLauncher/backend/internal/shared/id"
)

func newInstance(owner string, kind catalog.Kind) Instance {
	return Instance{
		ID:         id.NewInstanceID(),
		Definition: catalog.Definition{ID: "calc", Name: "Calculator", Kind: kind},
		Owner:      owner,
		Kind:       kind,
		LaunchedAt: time.Now(),
	}
}

func TestRegisterAndGet(t *testing.T) {
	m := NewManager()
	inst := newInstance("alice", catalog.KindDesktop)

	registered, err := m.Register(inst)
	require.NoError(t, err)
	assert.Equal(t, inst.ID, registered)

	got, err := m.Get(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, StateLaunching, got.State)
	assert.Equal(t, "alice", got.Owner)
	assert.Equal(t, inst.LaunchedAt, got.LastSeenAt)

	_, err = m.Get(id.NewInstanceID())
	assert.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	m := NewManager()
	inst := newInstance("alice", catalog.KindDesktop)

	_, err := m.Register(inst)
	require.NoError(t, err)
	_, err = m.Register(inst)
	assert.ErrorIs(t, err, ErrDuplicateInstance)

	_, err = m.Register(Instance{})
	assert.ErrorIs(t, err, ErrDuplicateInstance)
}

func TestRemovedIDIsNeverReused(t *testing.T) {
	m := NewManager()
	inst := newInstance("alice", catalog.KindDesktop)
	_, err := m.Register(inst)
	require.NoError(t, err)

	_, err = m.UpdateState(inst.ID, StateFailed)
	require.NoError(t, err)
	_, err = m.Remove(inst.ID)
	require.NoError(t, err)

	_, err = m.Register(inst)
	assert.ErrorIs(t, err, ErrDuplicateInstance)
}

func TestRemovedHistoryIsBounded(t *testing.T) {
	m := NewManager()
	var first Instance
	for i := 0; i < removedHistory+10; i++ {
		inst := newInstance("alice", catalog.KindDesktop)
		if i == 0 {
			first = inst
		}
		_, err := m.Register(inst)
		require.NoError(t, err)
		_, err = m.UpdateState(inst.ID, StateFailed)
		require.NoError(t, err)
		_, err = m.Remove(inst.ID)
		require.NoError(t, err)
	}

	m.mu.RLock()
	assert.Len(t, m.removed, removedHistory)
	assert.Len(t, m.removedOrder, removedHistory)
	_, remembered := m.removed[first.ID]
	m.mu.RUnlock()
	assert.False(t, remembered, "the oldest ids are forgotten")
	assert.Zero(t, m.Count())
}

func TestGetReturnsCopies(t *testing.T) {
	m := NewManager()
	inst := newInstance("alice", catalog.KindDesktop)
	_, err := m.Register(inst)
	require.NoError(t, err)

	got, _ := m.Get(inst.ID)
	got.State = StateClosed
	got.Owner = "mallory"

	again, _ := m.Get(inst.ID)
	assert.Equal(t, StateLaunching, again.State)
	assert.Equal(t, "alice", again.Owner)
}

func TestUpdateStateTransitions(t *testing.T) {
	tests := []struct {
		name     string
		path     []State
		next     State
		changed  bool
		errIs    error
		expected State
	}{
		{name: "launch succeeds", path: nil, next: StateRunning, changed: true, expected: StateRunning},
		{name: "launch fails", path: nil, next: StateFailed, changed: true, expected: StateFailed},
		{name: "close running", path: []State{StateRunning}, next: StateClosing, changed: true, expected: StateClosing},
		{name: "crash", path: []State{StateRunning}, next: StateCrashed, changed: true, expected: StateCrashed},
		{name: "close confirmed", path: []State{StateRunning, StateClosing}, next: StateClosed, changed: true, expected: StateClosed},
		{name: "close unconfirmed", path: []State{StateRunning, StateClosing}, next: StateFailed, changed: true, expected: StateFailed},
		{name: "same state", path: []State{StateRunning}, next: StateRunning, expected: StateRunning},
		{name: "closing cannot crash", path: []State{StateRunning, StateClosing}, next: StateCrashed, errIs: ErrInvalidTransition, expected: StateClosing},
		{name: "running cannot go back", path: []State{StateRunning}, next: StateLaunching, errIs: ErrInvalidTransition, expected: StateRunning},
		{name: "closed is final", path: []State{StateRunning, StateClosing, StateClosed}, next: StateRunning, expected: StateClosed},
		{name: "crashed is final", path: []State{StateRunning, StateCrashed}, next: StateClosed, expected: StateCrashed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager()
			inst := newInstance("alice", catalog.KindDesktop)
			_, err := m.Register(inst)
			require.NoError(t, err)
			for _, s := range tt.path {
				_, err := m.UpdateState(inst.ID, s)
				require.NoError(t, err)
			}

			changed, err := m.UpdateState(inst.ID, tt.next)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.changed, changed)

			got, _ := m.Get(inst.ID)
			assert.Equal(t, tt.expected, got.State)
		})
	}
}

func TestRemoveRequiresTerminalState(t *testing.T) {
	m := NewManager()
	inst := newInstance("alice", catalog.KindDesktop)
	_, err := m.Register(inst)
	require.NoError(t, err)

	_, err = m.Remove(inst.ID)
	assert.ErrorIs(t, err, ErrNotTerminal)

	_, _ = m.UpdateState(inst.ID, StateRunning)
	_, _ = m.UpdateState(inst.ID, StateCrashed)
	removed, err := m.Remove(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCrashed, removed.State)

	_, err = m.Remove(inst.ID)
	assert.ErrorIs(t, err, ErrInstanceNotFound)
	_, err = m.Get(inst.ID)
	assert.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestGetByUserAndStats(t *testing.T) {
	m := NewManager()
	for _, owner := range []string{"alice", "alice", "bob"} {
		_, err := m.Register(newInstance(owner, catalog.KindWeb))
		require.NoError(t, err)
	}

	assert.Len(t, m.GetByUser("alice"), 2)
	assert.Len(t, m.GetByUser("bob"), 1)
	assert.Empty(t, m.GetByUser("carol"))

	stats := m.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.ByState[StateLaunching])
	assert.Equal(t, 3, stats.ByKind["web"])
	assert.Equal(t, 2, stats.ByOwner["alice"])
}

func TestTouchAndSetWindow(t *testing.T) {
	m := NewManager()
	inst := newInstance("alice", catalog.KindWeb)
	_, err := m.Register(inst)
	require.NoError(t, err)

	later := inst.LaunchedAt.Add(time.Minute)
	m.Touch(inst.ID, later)
	m.Touch(inst.ID, inst.LaunchedAt)

	ref := &window.Ref{ID: "0x1", Title: "Intranet"}
	m.SetWindow(inst.ID, ref)
	ref.Title = "changed by caller"

	got, _ := m.Get(inst.ID)
	assert.Equal(t, later, got.LastSeenAt)
	require.NotNil(t, got.Tracking.Window)
	assert.Equal(t, "Intranet", got.Tracking.Window.Title)
}

func TestConcurrentTerminalTransition(t *testing.T) {
	m := NewManager()
	inst := newInstance("alice", catalog.KindDesktop)
	_, err := m.Register(inst)
	require.NoError(t, err)
	_, err = m.UpdateState(inst.ID, StateRunning)
	require.NoError(t, err)

	// Crash reports and close requests race; exactly one terminal transition wins.
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changes int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			target := StateCrashed
			if i%2 == 0 {
				_, _ = m.UpdateState(inst.ID, StateClosing)
				target = StateClosed
			}
			changed, _ := m.UpdateState(inst.ID, target)
			if changed {
				mu.Lock()
				changes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, changes)
	got, _ := m.Get(inst.ID)
	assert.True(t, got.State.IsTerminal())
}

func TestConcurrentRegisterAndRemove(t *testing.T) {
	m := NewManager()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inst := newInstance("alice", catalog.KindDesktop)
			_, err := m.Register(inst)
			assert.NoError(t, err)
			_, _ = m.UpdateState(inst.ID, StateFailed)
			_ = m.List()
			_, err = m.Remove(inst.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, m.Count())
}
