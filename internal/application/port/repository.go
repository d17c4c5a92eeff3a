package port

import (
	"context"

	"github.com/garyjia/tradeflow/internal/domain/entity"
)

// TemplateStore is the read contract the stage resolver and dynamic forms depend on.
// Lookups that find nothing return (nil, nil) or an empty slice.
type TemplateStore interface {
	// FindWorkflowTemplate returns the active template for the pair whose trigger types include triggerType
	FindWorkflowTemplate(ctx context.Context, productCode, eventCode, triggerType string) (*entity.WorkflowTemplate, error)

	// GetTemplateStages returns the template's stages in no particular order
	GetTemplateStages(ctx context.Context, templateID int64) ([]*entity.WorkflowStage, error)

	// GetStageFields returns a stage's fields ordered by field order
	GetStageFields(ctx context.Context, stageID int64) ([]*entity.StageField, error)
}

// TemplateRepository defines persistence operations for WorkflowTemplate
type TemplateRepository interface {
	Create(ctx context.Context, tmpl *entity.WorkflowTemplate) error
	GetByID(ctx context.Context, id int64) (*entity.WorkflowTemplate, error)
	FindActive(ctx context.Context, productCode, eventCode, triggerType string) (*entity.WorkflowTemplate, error)
	List(ctx context.Context) ([]*entity.WorkflowTemplate, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	// DeactivateByCodes marks every template of the pair inactive
	DeactivateByCodes(ctx context.Context, productCode, eventCode string) error
}

// StageRepository defines persistence operations for WorkflowStage and StageField
type StageRepository interface {
	Create(ctx context.Context, stage *entity.WorkflowStage) error
	GetByTemplateID(ctx context.Context, templateID int64) ([]*entity.WorkflowStage, error)
	SetRejectTarget(ctx context.Context, stageID int64, targetStageID int64) error
	CreateField(ctx context.Context, field *entity.StageField) error
	GetFieldsByStageID(ctx context.Context, stageID int64) ([]*entity.StageField, error)
}

// PermissionSource loads a user's permission snapshot. A user without any
// stored permissions yields an empty, non-super snapshot.
type PermissionSource interface {
	FetchPermissions(ctx context.Context, userID string) (*entity.PermissionSnapshot, error)
}

// PermissionRepository persists permission snapshots
type PermissionRepository interface {
	PermissionSource
	// SaveSnapshot replaces every stored permission of the snapshot's user
	SaveSnapshot(ctx context.Context, snapshot *entity.PermissionSnapshot) error
}

// TransactionRecorder is the persistence sink of the lifecycle driver
type TransactionRecorder interface {
	// CreateTransactionRecord inserts the record or updates it by transaction reference
	CreateTransactionRecord(ctx context.Context, record *entity.TransactionRecord) error
	GetByReference(ctx context.Context, transactionRef string) (*entity.TransactionRecord, error)
}

// TransactionRepository adds listing to the recorder
type TransactionRepository interface {
	TransactionRecorder
	List(ctx context.Context, limit, offset int) ([]*entity.TransactionRecord, error)
}

// HistoryRepository defines persistence operations for TransactionHistory
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.TransactionHistory) error
	GetByTransactionRef(ctx context.Context, transactionRef string) ([]*entity.TransactionHistory, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
