package workflow

var lifecycleBuilder = newLifecycleBuilder()

func newLifecycleBuilder() *Builder {
	b := NewBuilder()

	b.Configure(StateNotStarted).
		Permit(TriggerEnter, StateInStage).
		Permit(TriggerHandoff, StateInStage).
		Permit(TriggerRework, StateInStage)

	b.Configure(StateInStage).
		PermitReentry(TriggerAdvance).
		PermitReentry(TriggerRework).
		PermitReentry(TriggerHandoff).
		Permit(TriggerComplete, StateComplete).
		Permit(TriggerRelease, StateReleased).
		Permit(TriggerDiscard, StateNotStarted)

	// COMPLETE and RELEASED are terminal

	return b
}

// NewLifecycleMachine builds the transaction lifecycle machine:
//
//	NOT_STARTED -> IN_STAGE      (ENTER, HANDOFF, REWORK)
//	IN_STAGE    -> IN_STAGE      (ADVANCE, REWORK, HANDOFF)
//	IN_STAGE    -> COMPLETE      (COMPLETE)
//	IN_STAGE    -> RELEASED      (RELEASE)
//	IN_STAGE    -> NOT_STARTED   (DISCARD)
func NewLifecycleMachine(initial State) StateMachine {
	return lifecycleBuilder.Build(initial)
}
