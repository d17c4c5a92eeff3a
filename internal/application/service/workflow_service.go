package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/garyjia/tradeflow/internal/application/lifecycle"
	"github.com/garyjia/tradeflow/internal/application/permission"
	"github.com/garyjia/tradeflow/internal/application/port"
	"github.com/garyjia/tradeflow/internal/application/resolver"
	"github.com/garyjia/tradeflow/internal/domain/entity"
	"github.com/garyjia/tradeflow/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// WorkflowService resolves stages for users and drives lifecycle sessions
type WorkflowService interface {
	Resolve(ctx context.Context, in ResolveInput) (*Resolution, error)
	StageFields(ctx context.Context, stageID int64) ([]*entity.StageField, error)

	OpenSession(ctx context.Context, in OpenInput) (*SessionView, error)
	GetSession(sessionID string) (*SessionView, error)
	SubmitPane(ctx context.Context, sessionID, userID string, data map[string]interface{}) (*lifecycle.SubmitResult, error)
	RejectSession(ctx context.Context, sessionID, userID, reason string) (*lifecycle.SubmitResult, error)
	DiscardSession(ctx context.Context, sessionID, userID string) (*SessionView, error)
	CloseSession(sessionID, userID string) error
	SessionCount() int
}

// ResolveInput identifies the transaction and user to resolve for. When
// TransactionRef is set, missing product, event and status are read from
// the stored record.
type ResolveInput struct {
	UserID         string `json:"user_id"`
	ProductCode    string `json:"product_code"`
	EventCode      string `json:"event_code"`
	TriggerType    string `json:"trigger_type"`
	Status         string `json:"status"`
	TransactionRef string `json:"transaction_ref"`
}

// Resolution is the resolver's answer with everything the UI needs to open the form
type Resolution struct {
	Target         workflow.ResolvedTarget `json:"target"`
	Form           workflow.FormSelection  `json:"form"`
	Fields         []*entity.StageField    `json:"fields,omitempty"`
	Message        string                  `json:"message,omitempty"`
	Status         string                  `json:"status"`
	TransactionRef string                  `json:"transaction_ref,omitempty"`
}

// OpenInput is ResolveInput plus the session's channel and labels
type OpenInput struct {
	ResolveInput
	BusinessCentre    string                 `json:"business_centre"`
	InitiatingChannel string                 `json:"initiating_channel"`
	EventLabel        string                 `json:"event_label"`
	FormData          map[string]interface{} `json:"form_data"`
}

// SessionView is a snapshot of a lifecycle session
type SessionView struct {
	ID             string                 `json:"id"`
	TransactionRef string                 `json:"transaction_ref,omitempty"`
	Status         string                 `json:"status"`
	Phase          string                 `json:"phase"`
	ProductCode    string                 `json:"product_code"`
	EventCode      string                 `json:"event_code"`
	Stage          string                 `json:"stage"`
	Pane           string                 `json:"pane"`
	Panes          []string               `json:"panes"`
	LastPane       bool                   `json:"last_pane"`
	FinalStage     bool                   `json:"final_stage"`
	FormData       map[string]interface{} `json:"form_data"`
}

// Option configures the workflow service
type Option func(*workflowServiceImpl)

// WithDefaultTriggerType sets the trigger type used when a request has none
func WithDefaultTriggerType(triggerType string) Option {
	return func(s *workflowServiceImpl) {
		s.defaultTrigger = triggerType
	}
}

// WithDefaultBusinessCentre sets the business application used when neither
// the request nor the stored transaction names one
func WithDefaultBusinessCentre(centre string) Option {
	return func(s *workflowServiceImpl) {
		s.defaultCentre = centre
	}
}

// WithSessionGauge is called with the open session count after every change
func WithSessionGauge(fn func(int)) Option {
	return func(s *workflowServiceImpl) {
		s.sessionGauge = fn
	}
}

type workflowServiceImpl struct {
	store        port.TemplateStore
	transactions port.TransactionRecorder
	registry     *permission.Registry
	resolver     *resolver.Resolver
	driver       *lifecycle.Driver
	logger       Logger

	defaultTrigger string
	defaultCentre  string
	sessionGauge   func(int)

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

// sessionEntry keeps what re-resolution needs next to the session
type sessionEntry struct {
	session     *lifecycle.Session
	triggerType string
}

// NewWorkflowService creates a new WorkflowService
func NewWorkflowService(
	store port.TemplateStore,
	transactions port.TransactionRecorder,
	registry *permission.Registry,
	stageResolver *resolver.Resolver,
	driver *lifecycle.Driver,
	logger Logger,
	opts ...Option,
) WorkflowService {
	s := &workflowServiceImpl{
		store:          store,
		transactions:   transactions,
		registry:       registry,
		resolver:       stageResolver,
		driver:         driver,
		logger:         logger,
		defaultTrigger: entity.TriggerTypeManual,
		sessions:       make(map[string]*sessionEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve loads the user's permissions, resolves the next stage and selects the form
func (s *workflowServiceImpl) Resolve(ctx context.Context, in ResolveInput) (*Resolution, error) {
	in, _, err := s.completeInput(ctx, in)
	if err != nil {
		return nil, err
	}

	target, _, err := s.resolve(ctx, in)
	if err != nil {
		return nil, err
	}

	res := &Resolution{
		Target:         target,
		Form:           workflow.SelectForm(target),
		Status:         in.Status,
		TransactionRef: in.TransactionRef,
	}
	if !target.HasStage() {
		res.Message = target.Outcome.Message()
	}

	if res.Form.Shell == workflow.FormShellDynamic {
		fields, err := s.store.GetStageFields(ctx, target.Stage.ID)
		if err != nil {
			s.logger.Error("Failed to load stage fields", "stage_id", target.Stage.ID, "error", err)
			return nil, fmt.Errorf("failed to load stage fields: %w", err)
		}
		res.Fields = fields
	}

	s.logger.Info("Stage resolved",
		"user_id", in.UserID,
		"product_code", in.ProductCode,
		"event_code", in.EventCode,
		"status", in.Status,
		"outcome", target.Outcome,
		"stage", target.StageName,
	)
	return res, nil
}

// completeInput validates the input and fills it from the stored record
func (s *workflowServiceImpl) completeInput(ctx context.Context, in ResolveInput) (ResolveInput, *entity.TransactionRecord, error) {
	if in.UserID == "" {
		return in, nil, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	if in.TriggerType == "" {
		in.TriggerType = s.defaultTrigger
	}

	var record *entity.TransactionRecord
	if in.TransactionRef != "" {
		var err error
		record, err = s.transactions.GetByReference(ctx, in.TransactionRef)
		if err != nil {
			return in, nil, fmt.Errorf("failed to load transaction: %w", err)
		}
		if record == nil {
			return in, nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, in.TransactionRef)
		}
		if in.ProductCode == "" {
			in.ProductCode = record.ProductCode
		}
		if in.EventCode == "" {
			in.EventCode = record.EventCode
		}
		if in.Status == "" {
			in.Status = record.Status
		}
	}

	in.ProductCode = strings.ToUpper(strings.TrimSpace(in.ProductCode))
	in.EventCode = strings.ToUpper(strings.TrimSpace(in.EventCode))
	if in.ProductCode == "" || in.EventCode == "" {
		return in, nil, fmt.Errorf("%w: product_code and event_code are required", ErrInvalidRequest)
	}
	return in, record, nil
}

// resolve never runs against a snapshot that is not fully loaded
func (s *workflowServiceImpl) resolve(ctx context.Context, in ResolveInput) (workflow.ResolvedTarget, workflow.Access, error) {
	access, err := s.accessFor(ctx, in.UserID, in.ProductCode, in.EventCode)
	if err != nil {
		return workflow.ResolvedTarget{}, access, err
	}

	return s.resolver.Resolve(ctx, resolver.Request{
		Status:      in.Status,
		Access:      access,
		ProductCode: in.ProductCode,
		EventCode:   in.EventCode,
		TriggerType: in.TriggerType,
	}), access, nil
}

// accessFor returns the user's access on the pair. A failed permission load
// grants nothing, so resolution reports NOT_AUTHORIZED rather than an error.
func (s *workflowServiceImpl) accessFor(ctx context.Context, userID, productCode, eventCode string) (workflow.Access, error) {
	perms, err := s.registry.Ensure(ctx, userID)
	if perms != nil && perms.State() == permission.Failed {
		s.logger.Error("Permissions unavailable, resolving with no access", "user_id", userID, "error", err)
		return workflow.NoAccess(), nil
	}
	if err != nil || perms == nil || perms.State() != permission.Loaded {
		return workflow.Access{}, fmt.Errorf("%w: %v", permission.ErrNotLoaded, err)
	}
	return perms.Access(productCode, eventCode), nil
}

// StageFields returns a stage's fields for a dynamic form
func (s *workflowServiceImpl) StageFields(ctx context.Context, stageID int64) ([]*entity.StageField, error) {
	fields, err := s.store.GetStageFields(ctx, stageID)
	if err != nil {
		s.logger.Error("Failed to load stage fields", "stage_id", stageID, "error", err)
		return nil, err
	}
	if fields == nil {
		fields = []*entity.StageField{}
	}
	return fields, nil
}

// OpenSession resolves the target stage and starts a lifecycle session on it
func (s *workflowServiceImpl) OpenSession(ctx context.Context, in OpenInput) (*SessionView, error) {
	resolveIn, record, err := s.completeInput(ctx, in.ResolveInput)
	if err != nil {
		return nil, err
	}

	target, access, err := s.resolve(ctx, resolveIn)
	if err != nil {
		return nil, err
	}
	if !target.HasStage() {
		return nil, &NoStageError{Outcome: string(target.Outcome), Message: target.Outcome.Message()}
	}

	stages, err := s.store.GetTemplateStages(ctx, target.Template.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template stages: %w", err)
	}

	fields := make(map[int64][]*entity.StageField, len(stages))
	for _, stage := range stages {
		stageFields, err := s.store.GetStageFields(ctx, stage.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load stage fields: %w", err)
		}
		fields[stage.ID] = stageFields
	}

	channel := workflow.ChannelContext{
		BusinessCentre:    in.BusinessCentre,
		InitiatingChannel: in.InitiatingChannel,
	}
	formData := in.FormData
	eventLabel := in.EventLabel
	if record != nil {
		if channel.InitiatingChannel == "" {
			channel.InitiatingChannel = record.InitiatingChannel
		}
		if channel.BusinessCentre == "" {
			channel.BusinessCentre = record.BusinessApp
		}
		if eventLabel == "" {
			eventLabel = record.EventLabel
		}
		if formData == nil && record.FormData != "" {
			if err := json.Unmarshal([]byte(record.FormData), &formData); err != nil {
				return nil, fmt.Errorf("failed to decode stored form data: %w", err)
			}
		}
	}
	if channel.BusinessCentre == "" {
		channel.BusinessCentre = s.defaultCentre
	}

	session, err := s.driver.Open(lifecycle.OpenParams{
		Target:         target,
		Stages:         stages,
		Panes:          lifecycle.PanesFromFields(stages, fields),
		Channel:        channel,
		EventLabel:     eventLabel,
		Access:         access,
		ActorID:        resolveIn.UserID,
		TransactionRef: resolveIn.TransactionRef,
		Status:         resolveIn.Status,
		FormData:       formData,
	})
	if err != nil {
		s.logger.Error("Failed to open session", "user_id", resolveIn.UserID, "stage", target.StageName, "error", err)
		return nil, err
	}

	s.mu.Lock()
	s.sessions[session.ID()] = &sessionEntry{session: session, triggerType: resolveIn.TriggerType}
	count := len(s.sessions)
	s.mu.Unlock()
	s.reportSessions(count)

	return viewOf(session), nil
}

// GetSession returns a session snapshot
func (s *workflowServiceImpl) GetSession(sessionID string) (*SessionView, error) {
	entry, err := s.entry(sessionID)
	if err != nil {
		return nil, err
	}
	return viewOf(entry.session), nil
}

// SubmitPane submits the current pane for the session owner. After a stage
// completes the next stage is re-resolved with the owner's access; a
// completed or released session is closed.
func (s *workflowServiceImpl) SubmitPane(ctx context.Context, sessionID, userID string, data map[string]interface{}) (*lifecycle.SubmitResult, error) {
	entry, err := s.owned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	result, err := entry.session.SubmitPane(ctx, data)
	if err != nil {
		return nil, err
	}
	if result.StageCompleted && !result.Completed && !result.Released {
		if err := s.recheckNextStage(ctx, entry, result); err != nil {
			return nil, err
		}
	}
	s.settle(sessionID, result)
	return result, nil
}

// RejectSession rejects the session's current stage for the session owner
func (s *workflowServiceImpl) RejectSession(ctx context.Context, sessionID, userID, reason string) (*lifecycle.SubmitResult, error) {
	entry, err := s.owned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	result, err := entry.session.Reject(ctx, reason)
	if err != nil {
		return nil, err
	}
	s.settle(sessionID, result)
	return result, nil
}

// DiscardSession drops the session's unsaved progress
func (s *workflowServiceImpl) DiscardSession(ctx context.Context, sessionID, userID string) (*SessionView, error) {
	entry, err := s.ownedEntry(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if err := entry.session.Discard(ctx); err != nil {
		return nil, err
	}
	return viewOf(entry.session), nil
}

// CloseSession forgets a session the user owns
func (s *workflowServiceImpl) CloseSession(sessionID, userID string) error {
	if _, err := s.ownedEntry(sessionID, userID); err != nil {
		return err
	}
	return s.closeSession(sessionID)
}

func (s *workflowServiceImpl) closeSession(sessionID string) error {
	s.mu.Lock()
	if _, ok := s.sessions[sessionID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	delete(s.sessions, sessionID)
	count := len(s.sessions)
	s.mu.Unlock()

	s.reportSessions(count)
	return nil
}

// SessionCount returns the number of open sessions
func (s *workflowServiceImpl) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *workflowServiceImpl) entry(sessionID string) (*sessionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return entry, nil
}

func (s *workflowServiceImpl) ownedEntry(sessionID, userID string) (*sessionEntry, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	entry, err := s.entry(sessionID)
	if err != nil {
		return nil, err
	}
	if entry.session.Owner() != userID {
		s.logger.Error("Session used by another user", "session_id", sessionID, "user_id", userID)
		return nil, fmt.Errorf("%w: %s", ErrSessionForbidden, sessionID)
	}
	return entry, nil
}

// owned returns the user's session with its access refreshed from the
// current permission snapshot, so revoked grants take effect mid-session.
func (s *workflowServiceImpl) owned(ctx context.Context, sessionID, userID string) (*sessionEntry, error) {
	entry, err := s.ownedEntry(sessionID, userID)
	if err != nil {
		return nil, err
	}
	tmpl := entry.session.Template()
	access, err := s.accessFor(ctx, userID, tmpl.ProductCode, tmpl.EventCode)
	if err != nil {
		return nil, err
	}
	entry.session.SetAccess(access)
	return entry, nil
}

// recheckNextStage resolves the status just written and releases the
// session unless the resolver lands the owner on the stage the session moved to.
func (s *workflowServiceImpl) recheckNextStage(ctx context.Context, entry *sessionEntry, result *lifecycle.SubmitResult) error {
	owner := entry.session.Owner()
	tmpl := entry.session.Template()
	access, err := s.accessFor(ctx, owner, tmpl.ProductCode, tmpl.EventCode)
	if err != nil {
		return err
	}

	target := s.resolver.Resolve(ctx, resolver.Request{
		Status:      result.Status,
		Access:      access,
		ProductCode: tmpl.ProductCode,
		EventCode:   tmpl.EventCode,
		TriggerType: entry.triggerType,
	})
	if target.HasStage() && strings.EqualFold(target.StageName, result.NextStage) {
		return nil
	}

	result.Released = true
	result.Outcome = string(target.Outcome)
	if target.HasStage() {
		result.Outcome = string(workflow.OutcomeNotAuthorized)
	}
	result.NextStage = ""
	result.NextPane = ""
	s.logger.Info("Session released after re-resolution",
		"session_id", entry.session.ID(),
		"user_id", owner,
		"status", result.Status,
		"outcome", result.Outcome,
	)
	return nil
}

// settle closes a session that has nothing left for its owner
func (s *workflowServiceImpl) settle(sessionID string, result *lifecycle.SubmitResult) {
	if result.Completed || result.Released {
		_ = s.closeSession(sessionID)
	}
}

func (s *workflowServiceImpl) reportSessions(count int) {
	if s.sessionGauge != nil {
		s.sessionGauge(count)
	}
}

func viewOf(session *lifecycle.Session) *SessionView {
	tmpl := session.Template()
	return &SessionView{
		ID:             session.ID(),
		TransactionRef: session.TransactionRef(),
		Status:         session.Status(),
		Phase:          string(session.Phase()),
		ProductCode:    tmpl.ProductCode,
		EventCode:      tmpl.EventCode,
		Stage:          session.CurrentStage().StageName,
		Pane:           session.CurrentPane(),
		Panes:          session.Panes(),
		LastPane:       session.IsLastPaneOfStage(),
		FinalStage:     session.IsFinalStage(),
		FormData:       session.FormData(),
	}
}
