package workflow

import "github.com/garyjia/tradeflow/internal/domain/entity"

// FormShell is the kind of form the UI renders for a stage
type FormShell string

const (
	// FormShellStatic is a hand-built, product-specific form
	FormShellStatic FormShell = "static"
	// FormShellDynamic is the generic field-driven form
	FormShellDynamic FormShell = "dynamic"
)

// FormSelection tells the UI which shell to open and where to start
type FormSelection struct {
	Shell        FormShell `json:"shell"`
	InitialStage string    `json:"initial_stage,omitempty"`
	ProductCode  string    `json:"product_code,omitempty"`
	EventCode    string    `json:"event_code,omitempty"`
}

// SelectForm picks the form shell for a resolved target
func SelectForm(target ResolvedTarget) FormSelection {
	sel := FormSelection{Shell: FormShellStatic}
	if target.Template != nil {
		sel.ProductCode = target.Template.ProductCode
		sel.EventCode = target.Template.EventCode
	}
	if target.UIRenderMode == entity.RenderModeDynamic && target.HasStage() {
		sel.Shell = FormShellDynamic
		sel.InitialStage = target.StageName
	}
	return sel
}
