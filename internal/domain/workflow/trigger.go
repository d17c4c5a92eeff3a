package workflow

// Trigger represents an event that moves a transaction between lifecycle phases
type Trigger string

const (
	// TriggerEnter starts work on the first actionable stage
	TriggerEnter Trigger = "ENTER"
	// TriggerAdvance completes the current stage and moves to the next one
	TriggerAdvance Trigger = "ADVANCE"
	// TriggerComplete completes the final approval stage
	TriggerComplete Trigger = "COMPLETE"
	// TriggerRework sends the transaction back to data entry
	TriggerRework Trigger = "REWORK"
	// TriggerHandoff restarts at the first stage the receiving side can access
	TriggerHandoff Trigger = "HANDOFF"
	// TriggerDiscard drops in-memory progress
	TriggerDiscard Trigger = "DISCARD"
	// TriggerRelease hands the transaction over when the user cannot act on the next stage
	TriggerRelease Trigger = "RELEASE"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
