package entity

import (
	"strings"
	"time"
)

// Template lifecycle statuses
const (
	TemplateStatusActive   = "Active"
	TemplateStatusInactive = "Inactive"
)

// Trigger types a template can be configured for
const (
	TriggerTypeManual       = "Manual"
	TriggerTypeClientPortal = "ClientPortal"
)

// Actor types for workflow stages
const (
	ActorTypeMaker         = "Maker"
	ActorTypeChecker       = "Checker"
	ActorTypeAuthorization = "Authorization"

	// WildcardAll grants access to every stage (or is accessible to every actor
	// when used as a stage's actor type).
	WildcardAll = "__ALL__"
)

// Stage types
const (
	StageTypeInput    = "Input"
	StageTypePreinput = "Preinput"
)

// UI render modes for a stage
const (
	RenderModeStatic  = "static"
	RenderModeDynamic = "dynamic"
)

// WorkflowTemplate is a configured process for a product/event pair
type WorkflowTemplate struct {
	ID           int64     `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	ProductCode  string    `json:"product_code" yaml:"product_code"`
	EventCode    string    `json:"event_code" yaml:"event_code"`
	TriggerTypes []string  `json:"trigger_types" yaml:"trigger_types"`
	Status       string    `json:"status" yaml:"status"`
	CreatedAt    time.Time `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"-"`
}

// IsActive reports whether the template may be resolved
func (t *WorkflowTemplate) IsActive() bool {
	return strings.EqualFold(t.Status, TemplateStatusActive)
}

// SupportsTrigger reports whether triggerType is one of the template's trigger types
func (t *WorkflowTemplate) SupportsTrigger(triggerType string) bool {
	for _, tt := range t.TriggerTypes {
		if strings.EqualFold(tt, triggerType) {
			return true
		}
	}
	return false
}

// WorkflowStage is one ordered step of a template
type WorkflowStage struct {
	ID              int64  `json:"id" yaml:"id"`
	TemplateID      int64  `json:"template_id" yaml:"template_id"`
	StageOrder      int    `json:"stage_order" yaml:"stage_order"`
	StageName       string `json:"stage_name" yaml:"stage_name"`
	ActorType       string `json:"actor_type" yaml:"actor_type"`
	StageType       string `json:"stage_type" yaml:"stage_type"`
	UIRenderMode    string `json:"ui_render_mode,omitempty" yaml:"ui_render_mode,omitempty"`
	IsRejectable    bool   `json:"is_rejectable" yaml:"is_rejectable"`
	RejectToStageID *int64 `json:"reject_to_stage_id,omitempty" yaml:"reject_to_stage_id,omitempty"`
}

// RenderMode returns the stage's render mode, defaulting to static
func (s *WorkflowStage) RenderMode() string {
	if strings.EqualFold(s.UIRenderMode, RenderModeDynamic) {
		return RenderModeDynamic
	}
	return RenderModeStatic
}

// IsApproval reports whether the stage is an approval-type stage
func (s *WorkflowStage) IsApproval() bool {
	return strings.Contains(strings.ToLower(s.StageName), "approval")
}

// IsDataEntry reports whether the stage is the data entry stage
func (s *WorkflowStage) IsDataEntry() bool {
	return strings.Contains(strings.ToLower(s.StageName), "data entry")
}

// StageField describes one input of a dynamically rendered stage
type StageField struct {
	ID         int64    `json:"id" yaml:"id"`
	StageID    int64    `json:"stage_id" yaml:"stage_id"`
	FieldName  string   `json:"field_name" yaml:"field_name"`
	Label      string   `json:"label" yaml:"label"`
	FieldType  string   `json:"field_type" yaml:"field_type"`
	Required   bool     `json:"required" yaml:"required"`
	FieldOrder int      `json:"field_order" yaml:"field_order"`
	PaneName   string   `json:"pane_name,omitempty" yaml:"pane_name,omitempty"`
	Options    []string `json:"options,omitempty" yaml:"options,omitempty"`
}
