package entity

// TemplateDefinition is a complete template as authored in an import file:
// the template row, its stages and each stage's fields.
type TemplateDefinition struct {
	Template WorkflowTemplate  `json:"template" yaml:"template"`
	Stages   []StageDefinition `json:"stages" yaml:"stages"`
}

// StageDefinition is a stage together with its fields
type StageDefinition struct {
	WorkflowStage `yaml:",inline"`
	// RejectTo names the stage a rejection returns to; resolved to RejectToStageID on import
	RejectTo string       `json:"reject_to,omitempty" yaml:"reject_to,omitempty"`
	Fields   []StageField `json:"fields,omitempty" yaml:"fields,omitempty"`
}
