package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling through while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the breaker.
type Settings struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before allowing one probe call.
	Cooldown time.Duration
	// IsFailure classifies errors; nil counts every non-nil error.
	IsFailure func(error) bool
	// OnStateChange is called, outside the lock, whenever the state changes.
	OnStateChange func(name string, from, to State)
	// Now is the clock; nil uses time.Now.
	Now func() time.Time
}

// Breaker fails fast after repeated failures of an external collaborator so a
// wedged subsystem cannot stall callers that must respond quickly.
type Breaker struct {
	name     string
	settings Settings

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// New creates a breaker with defaults for zero settings.
func New(name string, settings Settings) *Breaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 3
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	if settings.IsFailure == nil {
		settings.IsFailure = func(err error) bool { return err != nil }
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}
	return &Breaker{name: name, settings: settings}
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state, moving open to half-open once the cooldown lapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// Call runs fn through the breaker.
func Call[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.before(); err != nil {
		return zero, err
	}
	result, err := fn()
	b.after(err)
	return result, err
}

// Do runs fn through the breaker when there is no result value.
func (b *Breaker) Do(fn func() error) error {
	_, err := Call(b, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentState() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	from := b.currentState()
	failed := err != nil && b.settings.IsFailure(err)

	var to State
	switch {
	case !failed:
		b.failures = 0
		to = StateClosed
	case from == StateHalfOpen:
		to = StateOpen
	default:
		b.failures++
		to = from
		if b.failures >= b.settings.FailureThreshold {
			to = StateOpen
		}
	}
	b.probing = false
	changed := b.setState(to)
	b.mu.Unlock()

	if changed && b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, from, to)
	}
}

// currentState must be called with mu held.
func (b *Breaker) currentState() State {
	if b.state == StateOpen && b.settings.Now().Sub(b.openedAt) >= b.settings.Cooldown {
		b.state = StateHalfOpen
		b.probing = false
	}
	return b.state
}

// setState must be called with mu held.
func (b *Breaker) setState(to State) bool {
	if b.state == to {
		return false
	}
	b.state = to
	if to == StateOpen {
		b.openedAt = b.settings.Now()
	}
	if to == StateClosed {
		b.failures = 0
	}
	return true
}
