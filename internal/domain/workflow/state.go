package workflow

// State is the lifecycle phase of a transaction as seen by the lifecycle driver
type State string

const (
	StateNotStarted State = "NOT_STARTED"
	StateInStage    State = "IN_STAGE"
	StateComplete   State = "COMPLETE"
	// StateReleased ends a session whose next stage belongs to another user
	StateReleased State = "RELEASED"
)

var validStates = map[State]bool{
	StateNotStarted: true,
	StateInStage:    true,
	StateComplete:   true,
	StateReleased:   true,
}

var terminalStates = map[State]bool{
	StateComplete: true,
	StateReleased: true,
}

// IsTerminal returns true if no further transitions are allowed
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known lifecycle phase
func (s State) IsValid() bool {
	return validStates[s]
}
