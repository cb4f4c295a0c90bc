package instance

// State is a position in the instance lifecycle.
type State string

const (
	StateLaunching State = "launching"
	StateRunning   State = "running"
	StateClosing   State = "closing"
	StateClosed    State = "closed"
	StateCrashed   State = "crashed"
	StateFailed    State = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	switch s {
	case StateClosed, StateCrashed, StateFailed:
		return true
	}
	return false
}

var transitions = map[State][]State{
	StateLaunching: {StateRunning, StateFailed, StateClosing, StateClosed},
	StateRunning:   {StateClosing, StateCrashed},
	StateClosing:   {StateClosed, StateFailed},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
