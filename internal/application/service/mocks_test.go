package service

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/garyjia/tradeflow/internal/domain/entity"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// memoryTemplates backs TemplateStore, TemplateRepository and StageRepository
type memoryTemplates struct {
	mu        sync.Mutex
	templates []*entity.WorkflowTemplate
	stages    []*entity.WorkflowStage
	fields    []*entity.StageField
	nextID    int64

	findErr        error
	createStageErr error
}

func (m *memoryTemplates) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memoryTemplates) FindWorkflowTemplate(ctx context.Context, productCode, eventCode, triggerType string) (*entity.WorkflowTemplate, error) {
	return m.FindActive(ctx, productCode, eventCode, triggerType)
}

func (m *memoryTemplates) GetTemplateStages(ctx context.Context, templateID int64) ([]*entity.WorkflowStage, error) {
	return m.GetByTemplateID(ctx, templateID)
}

func (m *memoryTemplates) GetStageFields(ctx context.Context, stageID int64) ([]*entity.StageField, error) {
	return m.GetFieldsByStageID(ctx, stageID)
}

func (m *memoryTemplates) Create(ctx context.Context, tmpl *entity.WorkflowTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tmpl.Status == "" {
		tmpl.Status = entity.TemplateStatusActive
	}
	tmpl.ID = m.id()
	cp := *tmpl
	m.templates = append(m.templates, &cp)
	return nil
}

func (m *memoryTemplates) GetByID(ctx context.Context, id int64) (*entity.WorkflowTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.templates {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, nil
}

func (m *memoryTemplates) FindActive(ctx context.Context, productCode, eventCode, triggerType string) (*entity.WorkflowTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for i := len(m.templates) - 1; i >= 0; i-- {
		t := m.templates[i]
		if strings.EqualFold(t.ProductCode, productCode) && strings.EqualFold(t.EventCode, eventCode) &&
			t.IsActive() && t.SupportsTrigger(triggerType) {
			return t, nil
		}
	}
	return nil, nil
}

func (m *memoryTemplates) List(ctx context.Context) ([]*entity.WorkflowTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entity.WorkflowTemplate(nil), m.templates...), nil
}

func (m *memoryTemplates) UpdateStatus(ctx context.Context, id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.templates {
		if t.ID == id {
			t.Status = status
		}
	}
	return nil
}

func (m *memoryTemplates) DeactivateByCodes(ctx context.Context, productCode, eventCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.templates {
		if strings.EqualFold(t.ProductCode, productCode) && strings.EqualFold(t.EventCode, eventCode) {
			t.Status = entity.TemplateStatusInactive
		}
	}
	return nil
}

func (m *memoryTemplates) CreateStage(stage *entity.WorkflowStage) {
	_ = (&memoryStages{m}).Create(context.Background(), stage)
}

// memoryStages exposes the StageRepository half of memoryTemplates
type memoryStages struct {
	m *memoryTemplates
}

func (s *memoryStages) Create(ctx context.Context, stage *entity.WorkflowStage) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.createStageErr != nil {
		return s.m.createStageErr
	}
	stage.ID = s.m.id()
	cp := *stage
	s.m.stages = append(s.m.stages, &cp)
	return nil
}

func (s *memoryStages) GetByTemplateID(ctx context.Context, templateID int64) ([]*entity.WorkflowStage, error) {
	return s.m.GetByTemplateID(ctx, templateID)
}

func (s *memoryStages) SetRejectTarget(ctx context.Context, stageID int64, targetStageID int64) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, st := range s.m.stages {
		if st.ID == stageID {
			id := targetStageID
			st.RejectToStageID = &id
		}
	}
	return nil
}

func (s *memoryStages) CreateField(ctx context.Context, field *entity.StageField) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	field.ID = s.m.id()
	cp := *field
	s.m.fields = append(s.m.fields, &cp)
	return nil
}

func (s *memoryStages) GetFieldsByStageID(ctx context.Context, stageID int64) ([]*entity.StageField, error) {
	return s.m.GetFieldsByStageID(ctx, stageID)
}

func (m *memoryTemplates) GetByTemplateID(ctx context.Context, templateID int64) ([]*entity.WorkflowStage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.WorkflowStage
	for _, st := range m.stages {
		if st.TemplateID == templateID {
			out = append(out, st)
		}
	}
	return out, nil
}

func (m *memoryTemplates) GetFieldsByStageID(ctx context.Context, stageID int64) ([]*entity.StageField, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.StageField
	for _, f := range m.fields {
		if f.StageID == stageID {
			out = append(out, f)
		}
	}
	return out, nil
}

type mockTransactions struct {
	mu      sync.Mutex
	records map[string]*entity.TransactionRecord
	history []*entity.TransactionHistory
}

func newMockTransactions() *mockTransactions {
	return &mockTransactions{records: make(map[string]*entity.TransactionRecord)}
}

func (m *mockTransactions) CreateTransactionRecord(ctx context.Context, record *entity.TransactionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *record
	m.records[record.TransactionRef] = &cp
	return nil
}

func (m *mockTransactions) GetByReference(ctx context.Context, ref string) (*entity.TransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[ref], nil
}

func (m *mockTransactions) List(ctx context.Context, limit, offset int) ([]*entity.TransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.TransactionRecord
	for _, r := range m.records {
		out = append(out, r)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// mockHistory is the HistoryRepository view of mockTransactions
type mockHistory struct {
	m *mockTransactions
}

func (h *mockHistory) Create(ctx context.Context, entry *entity.TransactionHistory) error {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	h.m.history = append(h.m.history, entry)
	return nil
}

func (h *mockHistory) GetByTransactionRef(ctx context.Context, ref string) ([]*entity.TransactionHistory, error) {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	var out []*entity.TransactionHistory
	for _, e := range h.m.history {
		if e.TransactionRef == ref {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockTxManager struct {
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

type mockPermissions struct {
	mu        sync.Mutex
	snapshots map[string]*entity.PermissionSnapshot
	fetchErr  error
	fetches   int
}

func newMockPermissions() *mockPermissions {
	return &mockPermissions{snapshots: make(map[string]*entity.PermissionSnapshot)}
}

func (m *mockPermissions) FetchPermissions(ctx context.Context, userID string) (*entity.PermissionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	if snap, ok := m.snapshots[userID]; ok {
		return snap, nil
	}
	return &entity.PermissionSnapshot{UserID: userID}, nil
}

func (m *mockPermissions) SaveSnapshot(ctx context.Context, snapshot *entity.PermissionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snapshot.UserID] = snapshot
	return nil
}

// stubLoader returns fixed definitions
type stubLoader struct {
	defs []entity.TemplateDefinition
	err  error
}

func (l *stubLoader) Load(ctx context.Context, r io.Reader) ([]entity.TemplateDefinition, error) {
	return l.defs, l.err
}
