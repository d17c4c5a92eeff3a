package repository

import (
	"context"

	"github.com/garyjia/tradeflow/internal/application/port"
	"github.com/garyjia/tradeflow/internal/domain/entity"
)

// TemplateStore serves the resolver's read contract from the template and stage repositories
type TemplateStore struct {
	templates port.TemplateRepository
	stages    port.StageRepository
}

// NewTemplateStore creates a template store
func NewTemplateStore(templates port.TemplateRepository, stages port.StageRepository) *TemplateStore {
	return &TemplateStore{
		templates: templates,
		stages:    stages,
	}
}

// FindWorkflowTemplate returns the active template for the pair and trigger type
func (s *TemplateStore) FindWorkflowTemplate(ctx context.Context, productCode, eventCode, triggerType string) (*entity.WorkflowTemplate, error) {
	return s.templates.FindActive(ctx, productCode, eventCode, triggerType)
}

// GetTemplateStages returns the template's stages
func (s *TemplateStore) GetTemplateStages(ctx context.Context, templateID int64) ([]*entity.WorkflowStage, error) {
	return s.stages.GetByTemplateID(ctx, templateID)
}

// GetStageFields returns a stage's fields
func (s *TemplateStore) GetStageFields(ctx context.Context, stageID int64) ([]*entity.StageField, error) {
	return s.stages.GetFieldsByStageID(ctx, stageID)
}

var _ port.TemplateStore = (*TemplateStore)(nil)
