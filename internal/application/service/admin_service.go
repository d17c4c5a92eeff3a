package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/garyjia/tradeflow/internal/application/dispatcher"
	"github.com/garyjia/tradeflow/internal/application/permission"
	"github.com/garyjia/tradeflow/internal/application/port"
	"github.com/garyjia/tradeflow/internal/domain/entity"
	"github.com/garyjia/tradeflow/internal/domain/event"
)

// AdminService manages permissions, template configuration and the transaction trail
type AdminService interface {
	UpsertPermissions(ctx context.Context, userID string, payload map[string]interface{}) (*entity.PermissionSnapshot, error)
	GetPermissions(ctx context.Context, userID string) (*PermissionView, error)
	ImportTemplates(ctx context.Context, loader port.TemplateLoader, r io.Reader) (*ImportResult, error)
	ListTemplates(ctx context.Context) ([]*entity.WorkflowTemplate, error)
	GetTransaction(ctx context.Context, transactionRef string) (*TransactionView, error)
	ListTransactions(ctx context.Context, limit, offset int) ([]*entity.TransactionRecord, error)
}

// PermissionView is a user's snapshot together with its load state
type PermissionView struct {
	State    string                     `json:"state"`
	Snapshot *entity.PermissionSnapshot `json:"snapshot,omitempty"`
}

// ImportResult summarises a template import
type ImportResult struct {
	Templates   int                        `json:"templates"`
	Stages      int                        `json:"stages"`
	Fields      int                        `json:"fields"`
	Deactivated []string                   `json:"deactivated"`
	Imported    []*entity.WorkflowTemplate `json:"imported"`
}

// TransactionView is a transaction with its status history
type TransactionView struct {
	Record  *entity.TransactionRecord    `json:"record"`
	History []*entity.TransactionHistory `json:"history"`
}

// AdminOption configures the admin service
type AdminOption func(*adminServiceImpl)

// WithAdminDispatcher publishes templates.imported events
func WithAdminDispatcher(d dispatcher.Dispatcher) AdminOption {
	return func(s *adminServiceImpl) {
		s.dispatcher = d
	}
}

// WithTemplatesChanged is called after every successful import, e.g. to drop a template cache
func WithTemplatesChanged(fn func()) AdminOption {
	return func(s *adminServiceImpl) {
		s.templatesChanged = fn
	}
}

type adminServiceImpl struct {
	permissions  port.PermissionRepository
	registry     *permission.Registry
	templates    port.TemplateRepository
	stages       port.StageRepository
	transactions port.TransactionRepository
	history      port.HistoryRepository
	txManager    port.TransactionManager
	logger       Logger

	dispatcher       dispatcher.Dispatcher
	templatesChanged func()
}

// NewAdminService creates a new AdminService
func NewAdminService(
	permissions port.PermissionRepository,
	registry *permission.Registry,
	templates port.TemplateRepository,
	stages port.StageRepository,
	transactions port.TransactionRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	logger Logger,
	opts ...AdminOption,
) AdminService {
	s := &adminServiceImpl{
		permissions:  permissions,
		registry:     registry,
		templates:    templates,
		stages:       stages,
		transactions: transactions,
		history:      history,
		txManager:    txManager,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpsertPermissions decodes an RPC-shaped payload, replaces the stored
// snapshot and drops the cached resolver so the next resolution reloads
func (s *adminServiceImpl) UpsertPermissions(ctx context.Context, userID string, payload map[string]interface{}) (*entity.PermissionSnapshot, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}

	snapshot, err := permission.DecodeSnapshot(userID, payload)
	if err != nil {
		return nil, err
	}

	if err := s.permissions.SaveSnapshot(ctx, snapshot); err != nil {
		s.logger.Error("Failed to save permissions", "user_id", userID, "error", err)
		return nil, err
	}

	s.registry.Invalidate(userID)
	s.logger.Info("Permissions updated",
		"user_id", userID,
		"super_user", snapshot.IsSuperUser,
		"grant_count", len(snapshot.ProductPermissions),
	)
	return snapshot, nil
}

// GetPermissions loads (if needed) and returns the user's snapshot
func (s *adminServiceImpl) GetPermissions(ctx context.Context, userID string) (*PermissionView, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}

	res, err := s.registry.Ensure(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &PermissionView{State: res.State().String(), Snapshot: res.Snapshot()}, nil
}

// ImportTemplates loads definitions and writes them in one transaction.
// Existing templates of each imported pair are deactivated first, so an
// import replaces the configuration of the pairs it names.
func (s *adminServiceImpl) ImportTemplates(ctx context.Context, loader port.TemplateLoader, r io.Reader) (*ImportResult, error) {
	defs, err := loader.Load(ctx, r)
	if err != nil {
		s.logger.Error("Failed to load template definitions", "error", err)
		return nil, err
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: no templates in document", ErrInvalidRequest)
	}

	result := &ImportResult{Deactivated: []string{}}
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		deactivated := make(map[string]bool)
		for i := range defs {
			def := &defs[i]
			pair := def.Template.ProductCode + "/" + def.Template.EventCode
			if !deactivated[pair] {
				if err := s.templates.DeactivateByCodes(txCtx, def.Template.ProductCode, def.Template.EventCode); err != nil {
					return err
				}
				deactivated[pair] = true
				result.Deactivated = append(result.Deactivated, pair)
			}

			if err := s.importOne(txCtx, def, result); err != nil {
				return fmt.Errorf("import %s: %w", pair, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Template import failed", "error", err)
		return nil, err
	}

	if s.templatesChanged != nil {
		s.templatesChanged()
	}
	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeTemplatesImported, "", map[string]interface{}{
			event.KeyCount: result.Templates,
		}))
	}

	s.logger.Info("Templates imported",
		"templates", result.Templates,
		"stages", result.Stages,
		"fields", result.Fields,
	)
	return result, nil
}

func (s *adminServiceImpl) importOne(ctx context.Context, def *entity.TemplateDefinition, result *ImportResult) error {
	tmpl := def.Template
	if err := s.templates.Create(ctx, &tmpl); err != nil {
		return err
	}

	ids := make(map[string]int64, len(def.Stages))
	for i := range def.Stages {
		stage := def.Stages[i].WorkflowStage
		stage.ID = 0
		stage.TemplateID = tmpl.ID
		stage.RejectToStageID = nil
		if err := s.stages.Create(ctx, &stage); err != nil {
			return err
		}
		ids[strings.ToLower(stage.StageName)] = stage.ID
		result.Stages++

		for j := range def.Stages[i].Fields {
			field := def.Stages[i].Fields[j]
			field.ID = 0
			field.StageID = stage.ID
			if err := s.stages.CreateField(ctx, &field); err != nil {
				return err
			}
			result.Fields++
		}
	}

	// reject targets may point forward, so they are linked once every stage exists
	for _, stage := range def.Stages {
		if stage.RejectTo == "" {
			continue
		}
		target, ok := ids[strings.ToLower(strings.TrimSpace(stage.RejectTo))]
		if !ok {
			return fmt.Errorf("stage %q rejects to unknown stage %q", stage.StageName, stage.RejectTo)
		}
		if err := s.stages.SetRejectTarget(ctx, ids[strings.ToLower(stage.StageName)], target); err != nil {
			return err
		}
	}

	result.Templates++
	result.Imported = append(result.Imported, &tmpl)
	return nil
}

// ListTemplates returns every stored template
func (s *adminServiceImpl) ListTemplates(ctx context.Context) ([]*entity.WorkflowTemplate, error) {
	templates, err := s.templates.List(ctx)
	if err != nil {
		return nil, err
	}
	if templates == nil {
		templates = []*entity.WorkflowTemplate{}
	}
	return templates, nil
}

// GetTransaction returns a transaction and its history
func (s *adminServiceImpl) GetTransaction(ctx context.Context, transactionRef string) (*TransactionView, error) {
	record, err := s.transactions.GetByReference(ctx, transactionRef)
	if err != nil {
		s.logger.Error("Failed to get transaction", "transaction_ref", transactionRef, "error", err)
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, transactionRef)
	}

	history, err := s.history.GetByTransactionRef(ctx, transactionRef)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []*entity.TransactionHistory{}
	}
	return &TransactionView{Record: record, History: history}, nil
}

// ListTransactions returns a page of transactions, newest first
func (s *adminServiceImpl) ListTransactions(ctx context.Context, limit, offset int) ([]*entity.TransactionRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	records, err := s.transactions.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []*entity.TransactionRecord{}
	}
	return records, nil
}
