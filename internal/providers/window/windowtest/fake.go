// Package windowtest provides an in-memory window backend for tests.
package windowtest

import (
	"context"
	"sync"

	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/window"
)

// Backend is a scriptable window.Backend. Windows close on Close unless
// their id is marked stubborn, and always go away on Kill.
type Backend struct {
	mu        sync.Mutex
	windows   []window.Ref
	stubborn  map[string]bool
	activated []string
	closed    []string
	killed    []string
	listErr   error
}

// New creates a backend holding refs.
func New(refs ...window.Ref) *Backend {
	b := &Backend{stubborn: make(map[string]bool)}
	for _, r := range refs {
		b.Add(r)
	}
	return b
}

// Add opens a window.
func (b *Backend) Add(ref window.Ref) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ref.Source = window.SourceOS
	b.windows = append(b.windows, ref)
}

// Remove closes a window as if the user did it.
func (b *Backend) Remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remove(id)
}

// SetStubborn makes Close a no-op for id.
func (b *Backend) SetStubborn(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stubborn[id] = true
}

// FailList makes List return err.
func (b *Backend) FailList(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listErr = err
}

// Closed returns the ids Close was called for.
func (b *Backend) Closed() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.closed...)
}

// Killed returns the ids Kill was called for.
func (b *Backend) Killed() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.killed...)
}

// Activated returns the ids Activate was called for.
func (b *Backend) Activated() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.activated...)
}

func (b *Backend) Name() string { return "fake" }

func (b *Backend) List(context.Context) ([]window.Ref, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]window.Ref(nil), b.windows...), nil
}

func (b *Backend) Activate(_ context.Context, ref window.Ref) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.activated = append(b.activated, ref.ID)
	return nil
}

func (b *Backend) Close(_ context.Context, ref window.Ref) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = append(b.closed, ref.ID)
	if !b.stubborn[ref.ID] {
		b.remove(ref.ID)
	}
	return nil
}

func (b *Backend) Kill(_ context.Context, ref window.Ref) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.killed = append(b.killed, ref.ID)
	b.remove(ref.ID)
	return nil
}

func (b *Backend) remove(id string) {
	kept := b.windows[:0]
	for _, w := range b.windows {
		if w.ID != id {
			kept = append(kept, w)
		}
	}
	b.windows = kept
}
