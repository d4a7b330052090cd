package scanner

import "fmt"

// State is the lifecycle state of a Scanner.
type State int32

const (
	// StateIdle is a scanner that has not been started.
	StateIdle State = iota
	// StateRunning is a scanner whose workers are taking jobs.
	StateRunning
	// StatePaused is a running scanner whose workers wait before the next job.
	StatePaused
	// StateCompleted means every candidate was processed.
	StateCompleted
	// StateStopped means the scan was stopped or its context cancelled.
	StateStopped
	// StateFailed means an internal fault ended the scan.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateStopped || s == StateFailed
}

// ParseState converts a state name produced by String back to a State.
func ParseState(s string) (State, error) {
	for st := StateIdle; st <= StateFailed; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return StateIdle, fmt.Errorf("unknown scan state %q", s)
}
