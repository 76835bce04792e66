package bulk

import (
	"fmt"
	"strings"
)

// State is the lifecycle state of an export job
type State int

const (
	NotStarted State = iota
	InProgress
	Completed
	// Failed is terminal: the server reported the job as failed with an OperationOutcome.
	Failed
)

var stateNames = map[State]string{
	NotStarted: "not_started",
	InProgress: "in_progress",
	Completed:  "completed",
	Failed:     "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// IsTerminal reports whether no further transitions can happen
func (s State) IsTerminal() bool {
	return s == Completed || s == Failed
}

// CanTransitionTo reports whether moving from s to next is allowed
func (s State) CanTransitionTo(next State) bool {
	switch s {
	case NotStarted:
		return next == InProgress
	case InProgress:
		return next == Completed || next == Failed
	default:
		return false
	}
}

// MarshalText renders the state by name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name
func (s *State) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for state, n := range stateNames {
		if n == name {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown export state %q", string(text))
}
