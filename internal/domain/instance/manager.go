package instance

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/window"
	"github.com/SerVas333/WindowsLauncher/backend/internal/shared/id"
)

// Registry errors.
var (
	ErrInstanceNotFound  = errors.New("instance not found")
	ErrDuplicateInstance = errors.New("duplicate instance id")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrNotTerminal       = errors.New("instance is not in a terminal state")
)

// Manager is the registry of launched instances and the only writer of
// instance state.
type Manager struct {
	mu        sync.RWMutex
	instances map[id.InstanceID]*Instance // Protected by mu
	removed   map[id.InstanceID]struct{}  // Protected by mu
	// removedOrder lists removed ids oldest first, at most removedHistory.
	removedOrder []id.InstanceID // Protected by mu
}

// removedHistory bounds how many removed ids are remembered to reject a
// stale re-registration. Fresh ids are ULIDs and never collide.
const removedHistory = 1024

// Stats summarizes the registry.
type Stats struct {
	Total   int            `json:"total"`
	ByState map[State]int  `json:"by_state"`
	ByKind  map[string]int `json:"by_kind"`
	ByOwner map[string]int `json:"by_owner"`
}

// NewManager creates an empty registry.
func NewManager() *Manager {
	return &Manager{
		instances: make(map[id.InstanceID]*Instance),
		removed:   make(map[id.InstanceID]struct{}),
	}
}

// Register adds inst. Its id must never have been registered before.
func (m *Manager) Register(inst Instance) (id.InstanceID, error) {
	if inst.ID == "" {
		return "", fmt.Errorf("%w: empty id", ErrDuplicateInstance)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.instances[inst.ID]; exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicateInstance, inst.ID)
	}
	if _, gone := m.removed[inst.ID]; gone {
		return "", fmt.Errorf("%w: %s was already used", ErrDuplicateInstance, inst.ID)
	}

	if inst.State == "" {
		inst.State = StateLaunching
	}
	if inst.LastSeenAt.IsZero() {
		inst.LastSeenAt = inst.LaunchedAt
	}
	stored := inst
	m.instances[inst.ID] = &stored
	return inst.ID, nil
}

// Get returns a copy of the instance.
func (m *Manager) Get(instanceID id.InstanceID) (Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.instances[instanceID]
	if !ok {
		return Instance{}, fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
	}
	return *inst, nil
}

// GetByUser returns copies of every instance owned by owner.
func (m *Manager) GetByUser(owner string) []Instance {
	return m.filter(func(i *Instance) bool { return i.Owner == owner })
}

// List returns copies of every instance, oldest first.
func (m *Manager) List() []Instance {
	return m.filter(func(*Instance) bool { return true })
}

func (m *Manager) filter(keep func(*Instance) bool) []Instance {
	m.mu.RLock()
	out := make([]Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		if keep(inst) {
			out = append(out, *inst)
		}
	}
	m.mu.RUnlock()

	// ULIDs sort by creation time.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateState moves an instance to state. Transitions out of a terminal state
// are accepted as no-ops and report changed=false. Other illegal transitions
// return ErrInvalidTransition.
func (m *Manager) UpdateState(instanceID id.InstanceID, state State) (changed bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.instances[instanceID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
	}
	if inst.State.IsTerminal() || inst.State == state {
		return false, nil
	}
	if !CanTransition(inst.State, state) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, inst.State, state)
	}
	inst.State = state
	return true, nil
}

// Remove deletes a terminal instance. Removing an unknown id reports
// ErrInstanceNotFound.
func (m *Manager) Remove(instanceID id.InstanceID) (Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.instances[instanceID]
	if !ok {
		return Instance{}, fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
	}
	if !inst.State.IsTerminal() {
		return Instance{}, fmt.Errorf("%w: %s is %s", ErrNotTerminal, instanceID, inst.State)
	}
	delete(m.instances, instanceID)
	m.forget(instanceID)
	return *inst, nil
}

// forget remembers a removed id, dropping the oldest beyond
// removedHistory. Called with mu held.
func (m *Manager) forget(instanceID id.InstanceID) {
	m.removed[instanceID] = struct{}{}
	m.removedOrder = append(m.removedOrder, instanceID)
	if len(m.removedOrder) > removedHistory {
		delete(m.removed, m.removedOrder[0])
		m.removedOrder = m.removedOrder[1:]
	}
}

// Touch records that the instance was observed alive at at.
func (m *Manager) Touch(instanceID id.InstanceID, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inst, ok := m.instances[instanceID]; ok && at.After(inst.LastSeenAt) {
		inst.LastSeenAt = at
	}
}

// SetWindow records the last known window of an instance.
func (m *Manager) SetWindow(instanceID id.InstanceID, ref *window.Ref) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inst, ok := m.instances[instanceID]; ok && !inst.State.IsTerminal() {
		if ref != nil {
			copied := *ref
			ref = &copied
		}
		inst.Tracking.Window = ref
	}
}

// Count returns the number of registered instances.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.instances)
}

// Stats returns registry statistics.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Total:   len(m.instances),
		ByState: make(map[State]int),
		ByKind:  make(map[string]int),
		ByOwner: make(map[string]int),
	}
	for _, inst := range m.instances {
		stats.ByState[inst.State]++
		stats.ByKind[string(inst.Kind)]++
		stats.ByOwner[inst.Owner]++
	}
	return stats
}
