package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/garyjia/tradeflow/internal/application/port"
	"github.com/garyjia/tradeflow/internal/domain/entity"
	"github.com/garyjia/tradeflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// TemplateRepository implements port.TemplateRepository
type TemplateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *sql.DB, logger *zap.Logger) port.TemplateRepository {
	return &TemplateRepository{
		db:     db,
		logger: logger,
	}
}

const templateColumns = `id, name, product_code, event_code, trigger_types, status, created_at, updated_at`

// Create inserts a template; an empty status defaults to Active
func (r *TemplateRepository) Create(ctx context.Context, tmpl *entity.WorkflowTemplate) error {
	if tmpl.Status == "" {
		tmpl.Status = entity.TemplateStatusActive
	}
	triggers, err := encodeStrings(tmpl.TriggerTypes)
	if err != nil {
		return fmt.Errorf("failed to encode trigger types: %w", err)
	}

	query := `
		INSERT INTO workflow_templates (name, product_code, event_code, trigger_types, status)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		tmpl.Name,
		tmpl.ProductCode,
		tmpl.EventCode,
		triggers,
		tmpl.Status,
	)
	if err != nil {
		r.logger.Error("Failed to create workflow template",
			zap.String("product_code", tmpl.ProductCode),
			zap.String("event_code", tmpl.EventCode),
			zap.Error(err))
		return fmt.Errorf("failed to create workflow template: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	tmpl.ID = id
	return nil
}

// GetByID retrieves a template by ID
func (r *TemplateRepository) GetByID(ctx context.Context, id int64) (*entity.WorkflowTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM workflow_templates WHERE id = ?`

	tmpl, err := scanTemplate(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get workflow template", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow template: %w", err)
	}
	return tmpl, nil
}

// FindActive returns the newest active template of the pair whose trigger
// types include triggerType. Codes compare case-insensitively.
func (r *TemplateRepository) FindActive(ctx context.Context, productCode, eventCode, triggerType string) (*entity.WorkflowTemplate, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM workflow_templates
		WHERE UPPER(product_code) = UPPER(?) AND UPPER(event_code) = UPPER(?) AND status = ?
		ORDER BY id DESC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, productCode, eventCode, entity.TemplateStatusActive)
	if err != nil {
		r.logger.Error("Failed to find workflow template",
			zap.String("product_code", productCode),
			zap.String("event_code", eventCode),
			zap.Error(err))
		return nil, fmt.Errorf("failed to find workflow template: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow template: %w", err)
		}
		if tmpl.SupportsTrigger(triggerType) {
			return tmpl, nil
		}
	}

	return nil, rows.Err()
}

// List returns every template ordered by product, event and ID
func (r *TemplateRepository) List(ctx context.Context) ([]*entity.WorkflowTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM workflow_templates ORDER BY product_code, event_code, id`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list workflow templates", zap.Error(err))
		return nil, fmt.Errorf("failed to list workflow templates: %w", err)
	}
	defer rows.Close()

	var templates []*entity.WorkflowTemplate
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow template: %w", err)
		}
		templates = append(templates, tmpl)
	}

	return templates, rows.Err()
}

// UpdateStatus updates a template's status
func (r *TemplateRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE workflow_templates SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, status, id)
	if err != nil {
		r.logger.Error("Failed to update template status", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update template status: %w", err)
	}
	return nil
}

// DeactivateByCodes marks every template of the pair inactive
func (r *TemplateRepository) DeactivateByCodes(ctx context.Context, productCode, eventCode string) error {
	query := `
		UPDATE workflow_templates SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE UPPER(product_code) = UPPER(?) AND UPPER(event_code) = UPPER(?)
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, entity.TemplateStatusInactive, productCode, eventCode)
	if err != nil {
		r.logger.Error("Failed to deactivate templates",
			zap.String("product_code", productCode),
			zap.String("event_code", eventCode),
			zap.Error(err))
		return fmt.Errorf("failed to deactivate templates: %w", err)
	}
	return nil
}

// getExecutor returns appropriate executor based on context
func (r *TemplateRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner) (*entity.WorkflowTemplate, error) {
	var tmpl entity.WorkflowTemplate
	var triggers string

	err := row.Scan(
		&tmpl.ID,
		&tmpl.Name,
		&tmpl.ProductCode,
		&tmpl.EventCode,
		&triggers,
		&tmpl.Status,
		&tmpl.CreatedAt,
		&tmpl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if tmpl.TriggerTypes, err = decodeStrings(triggers); err != nil {
		return nil, fmt.Errorf("invalid trigger types for template %d: %w", tmpl.ID, err)
	}
	return &tmpl, nil
}

// encodeStrings stores a string list as a JSON array column
func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeStrings(data string) ([]string, error) {
	if data == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, err
	}
	return values, nil
}

// Verify interface compliance
var _ port.TemplateRepository = (*TemplateRepository)(nil)
