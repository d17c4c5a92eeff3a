package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/tradeflow/internal/application/port"
	"github.com/garyjia/tradeflow/internal/domain/entity"
	"github.com/garyjia/tradeflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// StageRepository implements port.StageRepository
type StageRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStageRepository creates a new stage repository
func NewStageRepository(db *sql.DB, logger *zap.Logger) port.StageRepository {
	return &StageRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a workflow stage
func (r *StageRepository) Create(ctx context.Context, stage *entity.WorkflowStage) error {
	query := `
		INSERT INTO workflow_stages (
			template_id, stage_order, stage_name, actor_type, stage_type,
			ui_render_mode, is_rejectable, reject_to_stage_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var rejectTo sql.NullInt64
	if stage.RejectToStageID != nil {
		rejectTo = sql.NullInt64{Int64: *stage.RejectToStageID, Valid: true}
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		stage.TemplateID,
		stage.StageOrder,
		stage.StageName,
		stage.ActorType,
		stage.StageType,
		stage.RenderMode(),
		stage.IsRejectable,
		rejectTo,
	)
	if err != nil {
		r.logger.Error("Failed to create workflow stage",
			zap.Int64("template_id", stage.TemplateID),
			zap.String("stage_name", stage.StageName),
			zap.Error(err))
		return fmt.Errorf("failed to create workflow stage: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	stage.ID = id
	return nil
}

// GetByTemplateID retrieves the stages of a template ordered by stage order
func (r *StageRepository) GetByTemplateID(ctx context.Context, templateID int64) ([]*entity.WorkflowStage, error) {
	query := `
		SELECT id, template_id, stage_order, stage_name, actor_type, stage_type,
			ui_render_mode, is_rejectable, reject_to_stage_id
		FROM workflow_stages
		WHERE template_id = ?
		ORDER BY stage_order ASC, id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, templateID)
	if err != nil {
		r.logger.Error("Failed to get template stages", zap.Int64("template_id", templateID), zap.Error(err))
		return nil, fmt.Errorf("failed to get template stages: %w", err)
	}
	defer rows.Close()

	var stages []*entity.WorkflowStage
	for rows.Next() {
		var stage entity.WorkflowStage
		var rejectTo sql.NullInt64
		err := rows.Scan(
			&stage.ID,
			&stage.TemplateID,
			&stage.StageOrder,
			&stage.StageName,
			&stage.ActorType,
			&stage.StageType,
			&stage.UIRenderMode,
			&stage.IsRejectable,
			&rejectTo,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow stage: %w", err)
		}
		if rejectTo.Valid {
			id := rejectTo.Int64
			stage.RejectToStageID = &id
		}
		stages = append(stages, &stage)
	}

	return stages, rows.Err()
}

// SetRejectTarget points a stage's rejection at another stage
func (r *StageRepository) SetRejectTarget(ctx context.Context, stageID int64, targetStageID int64) error {
	query := `UPDATE workflow_stages SET reject_to_stage_id = ? WHERE id = ?`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, targetStageID, stageID)
	if err != nil {
		r.logger.Error("Failed to set reject target",
			zap.Int64("stage_id", stageID),
			zap.Int64("target_stage_id", targetStageID),
			zap.Error(err))
		return fmt.Errorf("failed to set reject target: %w", err)
	}
	return nil
}

// CreateField inserts a stage field
func (r *StageRepository) CreateField(ctx context.Context, field *entity.StageField) error {
	options, err := encodeStrings(field.Options)
	if err != nil {
		return fmt.Errorf("failed to encode field options: %w", err)
	}

	query := `
		INSERT INTO stage_fields (
			stage_id, field_name, label, field_type, required, field_order, pane_name, options
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		field.StageID,
		field.FieldName,
		field.Label,
		field.FieldType,
		field.Required,
		field.FieldOrder,
		field.PaneName,
		options,
	)
	if err != nil {
		r.logger.Error("Failed to create stage field",
			zap.Int64("stage_id", field.StageID),
			zap.String("field_name", field.FieldName),
			zap.Error(err))
		return fmt.Errorf("failed to create stage field: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	field.ID = id
	return nil
}

// GetFieldsByStageID retrieves a stage's fields ordered by field order
func (r *StageRepository) GetFieldsByStageID(ctx context.Context, stageID int64) ([]*entity.StageField, error) {
	query := `
		SELECT id, stage_id, field_name, label, field_type, required, field_order, pane_name, options
		FROM stage_fields
		WHERE stage_id = ?
		ORDER BY field_order ASC, id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, stageID)
	if err != nil {
		r.logger.Error("Failed to get stage fields", zap.Int64("stage_id", stageID), zap.Error(err))
		return nil, fmt.Errorf("failed to get stage fields: %w", err)
	}
	defer rows.Close()

	var fields []*entity.StageField
	for rows.Next() {
		var field entity.StageField
		var options string
		err := rows.Scan(
			&field.ID,
			&field.StageID,
			&field.FieldName,
			&field.Label,
			&field.FieldType,
			&field.Required,
			&field.FieldOrder,
			&field.PaneName,
			&options,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stage field: %w", err)
		}
		if field.Options, err = decodeStrings(options); err != nil {
			return nil, fmt.Errorf("invalid options for field %d: %w", field.ID, err)
		}
		fields = append(fields, &field)
	}

	return fields, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *StageRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// Verify interface compliance
var _ port.StageRepository = (*StageRepository)(nil)
