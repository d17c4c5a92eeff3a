package lifecycle

import "errors"

var (
	// ErrNoStage is returned when a session is opened without an actionable stage
	ErrNoStage = errors.New("no actionable stage")

	// ErrSessionComplete is returned for writes after the final stage
	ErrSessionComplete = errors.New("session is complete")

	// ErrStageNotRejectable is returned when rejecting a stage that does not allow it
	ErrStageNotRejectable = errors.New("stage is not rejectable")

	// ErrStageNotInTemplate is returned when the target stage is missing from the stage list
	ErrStageNotInTemplate = errors.New("stage not in template")

	// ErrStageNotAccessible is returned when the session owner may not act on the current stage
	ErrStageNotAccessible = errors.New("stage not accessible")

	// ErrSessionReleased is returned for writes after the session handed the transaction over
	ErrSessionReleased = errors.New("session released")
)
