package resolver

import (
	"context"
	"sort"
	"strings"

	"github.com/garyjia/tradeflow/internal/application/port"
	"github.com/garyjia/tradeflow/internal/domain/entity"
	"github.com/garyjia/tradeflow/internal/domain/workflow"
	"github.com/samber/lo"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Request is one resolution input. Access must come from a fully loaded permission snapshot.
type Request struct {
	Status      string
	Access      workflow.Access
	ProductCode string
	EventCode   string
	TriggerType string
}

// Resolver picks the single stage the current user can act on next.
// It holds no mutable state; identical requests give identical targets.
type Resolver struct {
	store          port.TemplateStore
	logger         Logger
	legacyRecovery bool
	observer       func(workflow.ResolvedTarget)
}

// Option configures the Resolver
type Option func(*Resolver)

// WithLegacyRecovery toggles the data-entry fallback for completed stage names
// that are missing from the template. Enabled by default.
func WithLegacyRecovery(enabled bool) Option {
	return func(r *Resolver) {
		r.legacyRecovery = enabled
	}
}

// WithObserver is called with every resolved target
func WithObserver(fn func(workflow.ResolvedTarget)) Option {
	return func(r *Resolver) {
		r.observer = fn
	}
}

// NewResolver creates a Resolver reading templates from store
func NewResolver(store port.TemplateStore, logger Logger, opts ...Option) *Resolver {
	r := &Resolver{
		store:          store,
		logger:         logger,
		legacyRecovery: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveTargetStage resolves using actor types. An empty list or one
// containing WildcardAll is treated as a super user.
func (r *Resolver) ResolveTargetStage(ctx context.Context, status string, accessibleActorTypes []string, productCode, eventCode, triggerType string) workflow.ResolvedTarget {
	return r.Resolve(ctx, Request{
		Status:      status,
		Access:      workflow.AccessFromActorTypes(accessibleActorTypes),
		ProductCode: productCode,
		EventCode:   eventCode,
		TriggerType: triggerType,
	})
}

// Resolve returns the next actionable stage for the request. Store failures
// are logged and reported as OutcomeNoTemplate.
func (r *Resolver) Resolve(ctx context.Context, req Request) workflow.ResolvedTarget {
	target := r.resolve(ctx, req)
	if r.observer != nil {
		r.observer(target)
	}
	return target
}

func (r *Resolver) resolve(ctx context.Context, req Request) workflow.ResolvedTarget {
	tmpl, stages, ok := r.loadTemplate(ctx, req)
	if !ok {
		return workflow.EmptyTarget(nil, workflow.OutcomeNoTemplate)
	}
	if len(stages) == 0 {
		return workflow.EmptyTarget(tmpl, workflow.OutcomeNoStages)
	}

	status := workflow.ParseStatus(req.Status)
	switch status.Kind {
	case workflow.StatusSentToBank:
		return firstAccessible(tmpl, stages, req.Access, nil)

	case workflow.StatusRejected, workflow.StatusDraft:
		return firstAccessible(tmpl, stages, req.Access, (*entity.WorkflowStage).IsDataEntry)

	case workflow.StatusIssued, workflow.StatusApproved:
		return workflow.EmptyTarget(tmpl, workflow.OutcomeComplete)
	}

	completed, ok := status.CompletedStage()
	if !ok {
		return firstAccessible(tmpl, stages, req.Access, nil)
	}
	if completed == workflow.AllComplete {
		return workflow.EmptyTarget(tmpl, workflow.OutcomeComplete)
	}

	idx := indexOfStage(stages, completed)
	if idx < 0 {
		return r.recoverUnmatched(tmpl, stages, req, completed)
	}
	if idx == len(stages)-1 {
		return workflow.EmptyTarget(tmpl, workflow.OutcomeComplete)
	}
	return nextIfAccessible(tmpl, stages, idx, req.Access)
}

// recoverUnmatched handles a completed stage name the template does not
// contain: legacy rows are sent to the stage after data entry.
func (r *Resolver) recoverUnmatched(tmpl *entity.WorkflowTemplate, stages []*entity.WorkflowStage, req Request, completed string) workflow.ResolvedTarget {
	if !r.legacyRecovery {
		return workflow.EmptyTarget(tmpl, workflow.OutcomeUnmatchedStatus)
	}

	idx := -1
	for i, s := range stages {
		if s.IsDataEntry() {
			idx = i
			break
		}
	}
	if idx < 0 || idx == len(stages)-1 {
		return workflow.EmptyTarget(tmpl, workflow.OutcomeUnmatchedStatus)
	}

	target := nextIfAccessible(tmpl, stages, idx, req.Access)
	if target.HasStage() {
		r.logger.Warn("Completed stage not in template, recovered via data entry stage",
			"product_code", req.ProductCode,
			"event_code", req.EventCode,
			"status", req.Status,
			"completed_stage", completed,
			"resolved_stage", target.StageName,
		)
	}
	return target
}

func (r *Resolver) loadTemplate(ctx context.Context, req Request) (*entity.WorkflowTemplate, []*entity.WorkflowStage, bool) {
	tmpl, err := r.store.FindWorkflowTemplate(ctx, req.ProductCode, req.EventCode, req.TriggerType)
	if err != nil {
		r.logger.Error("Failed to find workflow template",
			"product_code", req.ProductCode,
			"event_code", req.EventCode,
			"trigger_type", req.TriggerType,
			"error", err,
		)
		return nil, nil, false
	}
	if tmpl == nil || !tmpl.IsActive() || !tmpl.SupportsTrigger(req.TriggerType) {
		return nil, nil, false
	}

	stages, err := r.store.GetTemplateStages(ctx, tmpl.ID)
	if err != nil {
		r.logger.Error("Failed to load template stages",
			"template_id", tmpl.ID,
			"error", err,
		)
		return nil, nil, false
	}

	return tmpl, SortStages(stages), true
}

// SortStages returns a copy of stages ordered by ascending stage order.
// Nil entries are dropped; equal orders keep their input order.
func SortStages(stages []*entity.WorkflowStage) []*entity.WorkflowStage {
	sorted := make([]*entity.WorkflowStage, 0, len(stages))
	for _, s := range stages {
		if s != nil {
			sorted = append(sorted, s)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StageOrder < sorted[j].StageOrder
	})
	return sorted
}

// firstAccessible returns the first stage, in order, that matches and is accessible
func firstAccessible(tmpl *entity.WorkflowTemplate, stages []*entity.WorkflowStage, access workflow.Access, match func(*entity.WorkflowStage) bool) workflow.ResolvedTarget {
	matched := false
	for _, s := range stages {
		if match != nil && !match(s) {
			continue
		}
		matched = true
		if access.Allows(s) {
			return workflow.StageTarget(tmpl, s)
		}
	}
	if !matched {
		return workflow.EmptyTarget(tmpl, workflow.OutcomeUnmatchedStatus)
	}
	return workflow.EmptyTarget(tmpl, workflow.OutcomeNotAuthorized)
}

// nextIfAccessible returns stages[idx+1] when the user may act on it. It never skips ahead.
func nextIfAccessible(tmpl *entity.WorkflowTemplate, stages []*entity.WorkflowStage, idx int, access workflow.Access) workflow.ResolvedTarget {
	next := stages[idx+1]
	if access.Allows(next) {
		return workflow.StageTarget(tmpl, next)
	}
	return workflow.EmptyTarget(tmpl, workflow.OutcomeNotAuthorized)
}

func indexOfStage(stages []*entity.WorkflowStage, name string) int {
	name = strings.TrimSpace(name)
	_, idx, _ := lo.FindIndexOf(stages, func(s *entity.WorkflowStage) bool {
		return strings.EqualFold(strings.TrimSpace(s.StageName), name)
	})
	return idx
}
