package window

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Manager finds and manipulates the windows of launched applications.
type Manager struct {
	backend Backend
	logger  *zap.Logger

	mu       sync.RWMutex
	surfaces map[string]Surface
}

// NewManager creates a manager over backend. A nil backend behaves as a
// headless session with surfaces only.
func NewManager(backend Backend, logger *zap.Logger) *Manager {
	if backend == nil {
		backend = NoopBackend{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		backend:  backend,
		logger:   logger,
		surfaces: make(map[string]Surface),
	}
}

// Backend returns the OS window backend name.
func (m *Manager) Backend() string {
	return m.backend.Name()
}

// RegisterSurface makes an in-process surface discoverable under id.
func (m *Manager) RegisterSurface(id string, s Surface) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.surfaces[id] = s
}

// UnregisterSurface forgets a surface. Unknown ids are ignored.
func (m *Manager) UnregisterSurface(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.surfaces, id)
}

func (m *Manager) surface(id string) (Surface, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.surfaces[id]
	return s, ok
}

// Windows lists all OS windows and registered surfaces.
func (m *Manager) Windows(ctx context.Context) ([]Ref, error) {
	refs, err := m.backend.List(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	for id, s := range m.surfaces {
		refs = append(refs, Ref{ID: id, Title: s.Title(), Source: SourceSurface})
	}
	m.mu.RUnlock()

	sort.SliceStable(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs, nil
}

// FindWindowFor returns the window matching q. A nil ref with a nil error
// means the application currently has no visible UI.
func (m *Manager) FindWindowFor(ctx context.Context, q Query) (*Ref, error) {
	if q.SurfaceID != "" {
		s, ok := m.surface(q.SurfaceID)
		if !ok {
			return nil, nil
		}
		return &Ref{ID: q.SurfaceID, Title: s.Title(), Source: SourceSurface}, nil
	}
	if q.Empty() {
		return nil, nil
	}
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("window query: %w", err)
	}

	refs, err := m.backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}

	if q.PID > 0 {
		for _, ref := range refs {
			if ref.PID == q.PID {
				return &ref, nil
			}
		}
	}
	for _, ref := range refs {
		if q.matchesPatterns(ref) {
			return &ref, nil
		}
	}
	return nil, nil
}

// BringToFront activates the window.
func (m *Manager) BringToFront(ctx context.Context, ref Ref) error {
	if ref.Source == SourceSurface {
		s, ok := m.surface(ref.ID)
		if !ok {
			return ErrUnknownRef
		}
		s.Focus()
		return nil
	}
	return m.backend.Activate(ctx, ref)
}

// RequestClose posts a graceful close. It does not wait for the window to go
// away. Surfaces may refuse with ErrCloseRefused.
func (m *Manager) RequestClose(ctx context.Context, ref Ref) error {
	if ref.Source == SourceSurface {
		s, ok := m.surface(ref.ID)
		if !ok {
			return nil
		}
		if !s.RequestClose() {
			return ErrCloseRefused
		}
		m.UnregisterSurface(ref.ID)
		return nil
	}
	m.logger.Debug("Requesting window close", zap.String("window", ref.ID), zap.String("title", ref.Title))
	return m.backend.Close(ctx, ref)
}

// ForceClose destroys the window or surface unconditionally.
func (m *Manager) ForceClose(ctx context.Context, ref Ref) error {
	if ref.Source == SourceSurface {
		s, ok := m.surface(ref.ID)
		if !ok {
			return nil
		}
		s.Destroy()
		m.UnregisterSurface(ref.ID)
		return nil
	}
	m.logger.Debug("Force closing window", zap.String("window", ref.ID), zap.Int("pid", ref.PID))
	return m.backend.Kill(ctx, ref)
}

// Exists reports whether ref is still present.
func (m *Manager) Exists(ctx context.Context, ref Ref) (bool, error) {
	if ref.Source == SourceSurface {
		_, ok := m.surface(ref.ID)
		return ok, nil
	}
	refs, err := m.backend.List(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range refs {
		if r.ID == ref.ID {
			return true, nil
		}
	}
	return false, nil
}
