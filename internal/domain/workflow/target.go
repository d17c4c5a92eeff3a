package workflow

import "github.com/garyjia/tradeflow/internal/domain/entity"

// Outcome explains a resolution result
type Outcome string

const (
	// OutcomeStage means a stage is actionable
	OutcomeStage Outcome = "STAGE"
	// OutcomeNoTemplate means no active template is configured (or the store failed)
	OutcomeNoTemplate Outcome = "NO_TEMPLATE"
	// OutcomeNoStages means the template has no stages
	OutcomeNoStages Outcome = "NO_STAGES"
	// OutcomeNotAuthorized means a stage exists but the user may not act on it
	OutcomeNotAuthorized Outcome = "NOT_AUTHORIZED"
	// OutcomeComplete means the workflow is finished
	OutcomeComplete Outcome = "COMPLETE"
	// OutcomeUnmatchedStatus means the completed stage is not part of the template
	OutcomeUnmatchedStatus Outcome = "UNMATCHED_STATUS"
)

var outcomeMessages = map[Outcome]string{
	OutcomeStage:           "",
	OutcomeNoTemplate:      "No workflow is configured for this product and event",
	OutcomeNoStages:        "No workflow is configured for this product and event",
	OutcomeNotAuthorized:   "No action available: you are not authorized for the next stage",
	OutcomeComplete:        "No action required: this transaction has already been processed",
	OutcomeUnmatchedStatus: "No action available for the current transaction status",
}

// Message returns the user-facing text for an outcome without a stage
func (o Outcome) Message() string {
	return outcomeMessages[o]
}

// ResolvedTarget is the resolver's answer: the stage the user acts on next, if any
type ResolvedTarget struct {
	StageName    string                   `json:"stage_name"`
	Stage        *entity.WorkflowStage    `json:"stage"`
	Template     *entity.WorkflowTemplate `json:"template"`
	UIRenderMode string                   `json:"ui_render_mode"`
	Outcome      Outcome                  `json:"outcome"`
}

// HasStage reports whether there is an actionable stage
func (t ResolvedTarget) HasStage() bool {
	return t.Stage != nil
}

// EmptyTarget is a result without an actionable stage
func EmptyTarget(template *entity.WorkflowTemplate, outcome Outcome) ResolvedTarget {
	return ResolvedTarget{
		Template:     template,
		UIRenderMode: entity.RenderModeStatic,
		Outcome:      outcome,
	}
}

// StageTarget is a result pointing at stage
func StageTarget(template *entity.WorkflowTemplate, stage *entity.WorkflowStage) ResolvedTarget {
	return ResolvedTarget{
		StageName:    stage.StageName,
		Stage:        stage,
		Template:     template,
		UIRenderMode: stage.RenderMode(),
		Outcome:      OutcomeStage,
	}
}
