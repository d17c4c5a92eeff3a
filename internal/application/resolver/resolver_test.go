package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/garyjia/tradeflow/internal/domain/entity"
	"github.com/garyjia/tradeflow/internal/domain/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct {
	mu    sync.Mutex
	warns []string
	errs  []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}

func (m *mockLogger) Warn(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warns = append(m.warns, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, msg)
}

type mockStore struct {
	template  *entity.WorkflowTemplate
	stages    []*entity.WorkflowStage
	findErr   error
	stagesErr error
}

func (m *mockStore) FindWorkflowTemplate(ctx context.Context, productCode, eventCode, triggerType string) (*entity.WorkflowTemplate, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if m.template == nil || m.template.ProductCode != productCode || m.template.EventCode != eventCode {
		return nil, nil
	}
	return m.template, nil
}

func (m *mockStore) GetTemplateStages(ctx context.Context, templateID int64) ([]*entity.WorkflowStage, error) {
	if m.stagesErr != nil {
		return nil, m.stagesErr
	}
	return m.stages, nil
}

func (m *mockStore) GetStageFields(ctx context.Context, stageID int64) ([]*entity.StageField, error) {
	return nil, nil
}

func ilcTemplate() *entity.WorkflowTemplate {
	return &entity.WorkflowTemplate{
		ID:           1,
		Name:         "Import LC Issuance",
		ProductCode:  "ILC",
		EventCode:    "ISS",
		TriggerTypes: []string{entity.TriggerTypeClientPortal},
		Status:       entity.TemplateStatusActive,
	}
}

// ilcStages are deliberately out of order
func ilcStages() []*entity.WorkflowStage {
	return []*entity.WorkflowStage{
		{ID: 13, TemplateID: 1, StageOrder: 3, StageName: "Final Approval", ActorType: entity.ActorTypeAuthorization},
		{ID: 11, TemplateID: 1, StageOrder: 1, StageName: "Data Entry", ActorType: entity.ActorTypeMaker, UIRenderMode: "dynamic"},
		{ID: 12, TemplateID: 1, StageOrder: 2, StageName: "Checker Review", ActorType: entity.ActorTypeChecker},
	}
}

func newTestResolver(opts ...Option) (*Resolver, *mockStore, *mockLogger) {
	store := &mockStore{template: ilcTemplate(), stages: ilcStages()}
	logger := &mockLogger{}
	return NewResolver(store, logger, opts...), store, logger
}

func resolve(r *Resolver, status string, actorTypes ...string) workflow.ResolvedTarget {
	return r.ResolveTargetStage(context.Background(), status, actorTypes, "ILC", "ISS", entity.TriggerTypeClientPortal)
}

func TestResolveTargetStage_Scenarios(t *testing.T) {
	r, _, _ := newTestResolver()

	tests := []struct {
		name        string
		status      string
		actorTypes  []string
		wantStage   string
		wantOutcome workflow.Outcome
		wantMode    string
	}{
		{"A: new transaction, maker", "", []string{"Maker"}, "Data Entry", workflow.OutcomeStage, entity.RenderModeDynamic},
		{"B: data entry done, checker", "Data Entry Completed-Portal", []string{"Checker"}, "Checker Review", workflow.OutcomeStage, entity.RenderModeStatic},
		{"C: data entry done, maker only", "Data Entry Completed-Portal", []string{"Maker"}, "", workflow.OutcomeNotAuthorized, entity.RenderModeStatic},
		{"D: rejected returns to data entry", "rejected", []string{"Maker"}, "Data Entry", workflow.OutcomeStage, entity.RenderModeDynamic},
		{"D: rejected, no data entry access", "rejected", []string{"Checker"}, "", workflow.OutcomeNotAuthorized, entity.RenderModeStatic},
		{"E: issued, super user", "issued", nil, "", workflow.OutcomeComplete, entity.RenderModeStatic},
		{"E: issued, authorizer", "Issued", []string{"Authorization"}, "", workflow.OutcomeComplete, entity.RenderModeStatic},
		{"F: sent to bank, checker", "sent to bank", []string{"Checker"}, "Checker Review", workflow.OutcomeStage, entity.RenderModeStatic},
		{"draft behaves like rejected", "Draft", []string{"Maker", "Checker"}, "Data Entry", workflow.OutcomeStage, entity.RenderModeDynamic},
		{"approved with channel is terminal", "Approved-Bank", nil, "", workflow.OutcomeComplete, entity.RenderModeStatic},
		{"last stage completed", "Final Approval Completed-Bank", nil, "", workflow.OutcomeComplete, entity.RenderModeStatic},
		{"legacy keyword missing from template recovers", "limit checked", nil, "Checker Review", workflow.OutcomeStage, entity.RenderModeStatic},
		{"legacy submitted", "submitted", []string{"Checker"}, "Checker Review", workflow.OutcomeStage, entity.RenderModeStatic},
		{"legacy approved is the last stage", "approved", nil, "", workflow.OutcomeComplete, entity.RenderModeStatic},
		{"unrecognized falls back to first accessible", "garbled ~~ status", []string{"Authorization"}, "Final Approval", workflow.OutcomeStage, entity.RenderModeStatic},
		{"pending falls back to first accessible", "pending", []string{"Checker"}, "Checker Review", workflow.OutcomeStage, entity.RenderModeStatic},
		{"completed without channel", "checker review completed", []string{"Authorization"}, "Final Approval", workflow.OutcomeStage, entity.RenderModeStatic},
		{"wildcard actor list is super user", "Checker Review Completed-Portal", []string{"Maker", entity.WildcardAll}, "Final Approval", workflow.OutcomeStage, entity.RenderModeStatic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolve(r, tt.status, tt.actorTypes...)
			assert.Equal(t, tt.wantStage, got.StageName)
			assert.Equal(t, tt.wantOutcome, got.Outcome)
			assert.Equal(t, tt.wantMode, got.UIRenderMode)
			assert.Equal(t, tt.wantStage != "", got.HasStage())
		})
	}
}

func TestResolve_CompletedStageAdvancesOneStep(t *testing.T) {
	r, _, _ := newTestResolver()
	ordered := SortStages(ilcStages())

	for i, s := range ordered {
		status := workflow.StageCompletedStatus(s.StageName, workflow.ChannelPortal).String()

		for _, actor := range []string{entity.ActorTypeMaker, entity.ActorTypeChecker, entity.ActorTypeAuthorization} {
			t.Run(fmt.Sprintf("%s/%s", status, actor), func(t *testing.T) {
				got := resolve(r, status, actor)
				if i == len(ordered)-1 {
					assert.False(t, got.HasStage())
					return
				}
				next := ordered[i+1]
				if next.ActorType == actor {
					require.True(t, got.HasStage())
					assert.Equal(t, next.StageName, got.StageName)
				} else {
					assert.False(t, got.HasStage())
					assert.Equal(t, workflow.OutcomeNotAuthorized, got.Outcome)
				}
			})
		}
	}
}

func TestResolve_Idempotent(t *testing.T) {
	r, _, _ := newTestResolver()

	for _, status := range []string{"", "Data Entry Completed-Portal", "rejected", "sent to bank", "issued", "noise"} {
		first := resolve(r, status, "Checker")
		second := resolve(r, status, "Checker")
		assert.Equal(t, first, second, status)
	}
}

func TestResolve_SuperUserSeesEveryStage(t *testing.T) {
	r, store, _ := newTestResolver()
	store.stages = append(store.stages, &entity.WorkflowStage{ID: 14, StageOrder: 4, StageName: "Bank Release", ActorType: "Operations"})

	got := resolve(r, "Final Approval Completed-Bank")
	require.True(t, got.HasStage())
	assert.Equal(t, "Bank Release", got.StageName)
}

func TestResolve_NoTemplate(t *testing.T) {
	r, store, logger := newTestResolver()

	got := r.ResolveTargetStage(context.Background(), "", nil, "BG", "ISS", entity.TriggerTypeClientPortal)
	assert.Equal(t, workflow.EmptyTarget(nil, workflow.OutcomeNoTemplate), got)

	got = r.ResolveTargetStage(context.Background(), "", nil, "ILC", "ISS", entity.TriggerTypeManual)
	assert.Equal(t, workflow.OutcomeNoTemplate, got.Outcome, "trigger type not configured")

	store.template.Status = entity.TemplateStatusInactive
	assert.Equal(t, workflow.OutcomeNoTemplate, resolve(r, "").Outcome)
	assert.Empty(t, logger.errs)
}

func TestResolve_StoreFailuresDegradeToNoTemplate(t *testing.T) {
	r, store, logger := newTestResolver()

	store.findErr = errors.New("connection refused")
	assert.Equal(t, workflow.OutcomeNoTemplate, resolve(r, "").Outcome)

	store.findErr = nil
	store.stagesErr = errors.New("bad rows")
	got := resolve(r, "")
	assert.Equal(t, workflow.OutcomeNoTemplate, got.Outcome)
	assert.Nil(t, got.Template)

	assert.Equal(t, []string{"Failed to find workflow template", "Failed to load template stages"}, logger.errs)
}

func TestResolve_ZeroStages(t *testing.T) {
	r, store, _ := newTestResolver()
	store.stages = nil

	for _, status := range []string{"", "issued", "rejected", "sent to bank", "Data Entry Completed-Portal"} {
		got := resolve(r, status)
		assert.False(t, got.HasStage(), status)
		assert.Equal(t, workflow.OutcomeNoStages, got.Outcome, status)
		assert.NotNil(t, got.Template, status)
	}
}

func TestResolve_LegacyRecovery(t *testing.T) {
	t.Run("enabled recovers to the stage after data entry", func(t *testing.T) {
		r, _, logger := newTestResolver()

		got := resolve(r, "Document Scrutiny Completed-Portal", "Checker")
		require.True(t, got.HasStage())
		assert.Equal(t, "Checker Review", got.StageName)
		assert.Len(t, logger.warns, 1)
	})

	t.Run("enabled but successor inaccessible", func(t *testing.T) {
		r, _, logger := newTestResolver()

		got := resolve(r, "Document Scrutiny Completed-Portal", "Maker")
		assert.Equal(t, workflow.OutcomeNotAuthorized, got.Outcome)
		assert.Empty(t, logger.warns)
	})

	t.Run("enabled without data entry stage", func(t *testing.T) {
		r, store, _ := newTestResolver()
		store.stages = store.stages[:1]

		got := resolve(r, "Unknown Completed-Portal")
		assert.Equal(t, workflow.OutcomeUnmatchedStatus, got.Outcome)
	})

	t.Run("disabled", func(t *testing.T) {
		r, _, logger := newTestResolver(WithLegacyRecovery(false))

		got := resolve(r, "Document Scrutiny Completed-Portal", "Checker")
		assert.Equal(t, workflow.OutcomeUnmatchedStatus, got.Outcome)
		assert.Empty(t, logger.warns)
	})
}

func TestResolve_TieBreakByStageOrder(t *testing.T) {
	r, store, _ := newTestResolver()
	store.stages = []*entity.WorkflowStage{
		{ID: 3, StageOrder: 20, StageName: "Data Entry Amendment", ActorType: entity.ActorTypeMaker},
		{ID: 2, StageOrder: 10, StageName: "Data Entry", ActorType: entity.ActorTypeMaker},
		{ID: 1, StageOrder: 30, StageName: "Final Approval", ActorType: entity.ActorTypeAuthorization},
	}

	assert.Equal(t, "Data Entry", resolve(r, "rejected", "Maker").StageName)
	assert.Equal(t, "Data Entry", resolve(r, "sent to bank", "Maker").StageName)
}

func TestResolve_ExplicitAccess(t *testing.T) {
	r, _, _ := newTestResolver()
	req := Request{
		Status:      "",
		ProductCode: "ILC",
		EventCode:   "ISS",
		TriggerType: entity.TriggerTypeClientPortal,
	}

	req.Access = workflow.NoAccess()
	assert.Equal(t, workflow.OutcomeNotAuthorized, r.Resolve(context.Background(), req).Outcome)

	req.Access = workflow.NewAccess(nil, []string{"Checker Review"})
	assert.Equal(t, "Checker Review", r.Resolve(context.Background(), req).StageName)
}

func TestResolve_Observer(t *testing.T) {
	var outcomes []workflow.Outcome
	r, _, _ := newTestResolver(WithObserver(func(target workflow.ResolvedTarget) {
		outcomes = append(outcomes, target.Outcome)
	}))

	resolve(r, "")
	resolve(r, "issued")
	assert.Equal(t, []workflow.Outcome{workflow.OutcomeStage, workflow.OutcomeComplete}, outcomes)
}

func TestSortStages(t *testing.T) {
	stages := []*entity.WorkflowStage{
		{ID: 1, StageOrder: 2},
		nil,
		{ID: 2, StageOrder: 1},
		{ID: 3, StageOrder: 2},
	}

	sorted := SortStages(stages)
	ids := make([]int64, 0, len(sorted))
	for _, s := range sorted {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []int64{2, 1, 3}, ids)
	assert.Nil(t, stages[1], "input is not modified")
}
