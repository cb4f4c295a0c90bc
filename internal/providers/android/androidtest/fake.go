// Package androidtest provides an in-memory Android bridge for tests.
package androidtest

import (
	"context"
	"sync"

	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/android"
)

// Bridge is an android.Bridge whose status and packages are set by the test.
// Stop on a package marked stubborn is accepted but leaves it running.
type Bridge struct {
	mu       sync.Mutex
	status   android.Status
	running  map[string]bool
	stubborn map[string]bool
	known    map[string]bool
	started  []string
	stopped  []string
	subs     []chan android.Status
}

// New creates a bridge in status. Every package is launchable unless Known
// restricts the set.
func New(status android.Status) *Bridge {
	return &Bridge{
		status:   status,
		running:  make(map[string]bool),
		stubborn: make(map[string]bool),
	}
}

// Known restricts launchable packages to pkgs.
func (b *Bridge) Known(pkgs ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.known = make(map[string]bool)
	for _, p := range pkgs {
		b.known[p] = true
	}
}

// SetStatus changes the status and notifies subscribers.
func (b *Bridge) SetStatus(s android.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = s
	for _, ch := range b.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// SetStubborn makes Stop ineffective for pkg.
func (b *Bridge) SetStubborn(pkg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stubborn[pkg] = true
}

// Exit stops pkg as if it quit on its own.
func (b *Bridge) Exit(pkg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.running, pkg)
}

// Started returns the packages Start was called for.
func (b *Bridge) Started() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.started...)
}

// Stopped returns the packages Stop was called for.
func (b *Bridge) Stopped() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.stopped...)
}

func (b *Bridge) Status() android.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *Bridge) Subscribe() (<-chan android.Status, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan android.Status, 8)
	b.subs = append(b.subs, ch)
	return ch, func() {}
}

func (b *Bridge) Start(_ context.Context, pkg, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status != android.StatusAvailable {
		return &android.UnavailableError{Status: b.status}
	}
	if b.known != nil && !b.known[pkg] {
		return android.ErrPackageNotFound
	}
	b.started = append(b.started, pkg)
	b.running[pkg] = true
	return nil
}

func (b *Bridge) Stop(_ context.Context, pkg string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = append(b.stopped, pkg)
	if !b.stubborn[pkg] {
		delete(b.running, pkg)
	}
	return nil
}

func (b *Bridge) IsRunning(_ context.Context, pkg string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running[pkg], nil
}
