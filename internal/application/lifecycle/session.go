package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/garyjia/tradeflow/internal/domain/entity"
	"github.com/garyjia/tradeflow/internal/domain/event"
	"github.com/garyjia/tradeflow/internal/domain/workflow"
)

// Session drives one transaction through its stages for one user. Only the
// last pane of a stage writes a status. When the stage after a write is not
// allowed by the owner's access the session is released: the transaction
// waits for whoever can act on that stage to open their own session.
type Session struct {
	id         string
	driver     *Driver
	template   *entity.WorkflowTemplate
	stages     []*entity.WorkflowStage
	panes      map[int64][]string
	channel    workflow.ChannelContext
	flow       Flow
	eventLabel string
	actorID    string
	startIdx   int

	// state restored by Discard
	initialRef    string
	initialStatus string
	initialData   map[string]interface{}

	mu       sync.Mutex
	access   workflow.Access
	stageIdx int
	paneIdx  int
	ref      string
	status   string
	formData map[string]interface{}
	machine  workflow.StateMachine
}

// SubmitResult reports what a pane submit did
type SubmitResult struct {
	TransactionRef string `json:"transaction_ref,omitempty"`
	Status         string `json:"status"`
	StageCompleted bool   `json:"stage_completed"`
	Completed      bool   `json:"completed"`
	Released       bool   `json:"released,omitempty"`
	Outcome        string `json:"outcome,omitempty"`
	NextStage      string `json:"next_stage,omitempty"`
	NextPane       string `json:"next_pane,omitempty"`
}

// ID returns the session ID
func (s *Session) ID() string {
	return s.id
}

// Owner returns the user the session was opened for
func (s *Session) Owner() string {
	return s.actorID
}

// SetAccess replaces the owner's access, e.g. after a permission reload
func (s *Session) SetAccess(access workflow.Access) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = access
}

// Template returns the session's template
func (s *Session) Template() *entity.WorkflowTemplate {
	return s.template
}

// TransactionRef returns the reference, empty until the first status write
func (s *Session) TransactionRef() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ref
}

// Status returns the last status written or loaded
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Phase returns the lifecycle phase
func (s *Session) Phase() workflow.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.State()
}

// CurrentStage returns the stage being worked on
func (s *Session) CurrentStage() *entity.WorkflowStage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stages[s.stageIdx]
}

// CurrentPane returns the pane being worked on
func (s *Session) CurrentPane() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panes[s.stages[s.stageIdx].ID][s.paneIdx]
}

// Panes returns the panes of the current stage
func (s *Session) Panes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.panes[s.stages[s.stageIdx].ID]...)
}

// FormData returns a copy of the collected form data
func (s *Session) FormData() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyData(s.formData)
}

// IsLastPaneOfStage reports whether submitting now completes the stage
func (s *Session) IsLastPaneOfStage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLastPane()
}

// IsFinalStage reports whether the current stage is the template's last
func (s *Session) IsFinalStage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isFinalStage()
}

func (s *Session) isLastPane() bool {
	return s.paneIdx >= len(s.panes[s.stages[s.stageIdx].ID])-1
}

func (s *Session) isFinalStage() bool {
	return s.stageIdx == len(s.stages)-1
}

// SubmitPane merges data into the form and moves forward one pane. On the
// last pane of a stage the new status is persisted with a history row and
// events are published. A discarded session re-enters its start stage.
func (s *Session) SubmitPane(ctx context.Context, data map[string]interface{}) (*SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stage, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}

	for k, v := range data {
		s.formData[k] = v
	}

	if !s.isLastPane() {
		s.paneIdx++
		return &SubmitResult{
			TransactionRef: s.ref,
			Status:         s.status,
			NextStage:      stage.StageName,
			NextPane:       s.panes[stage.ID][s.paneIdx],
		}, nil
	}

	final := s.isFinalStage()
	finalApproval := final && stage.IsApproval()
	newStatus := NextStatus(stage.StageName, finalApproval, s.flow, s.channel.Channel())

	action := entity.ActionStageCompleted
	if finalApproval {
		action = entity.ActionFinalApproval
	}

	previous, created, err := s.persist(ctx, stage, newStatus, action, "")
	if err != nil {
		return nil, err
	}

	result := &SubmitResult{
		TransactionRef: s.ref,
		Status:         newStatus,
		StageCompleted: true,
	}

	if final {
		if err := s.machine.Fire(ctx, workflow.TriggerComplete); err != nil {
			return nil, err
		}
		result.Completed = true
	} else {
		if err := s.machine.Fire(ctx, workflow.TriggerAdvance); err != nil {
			return nil, err
		}
		s.stageIdx++
		s.paneIdx = 0
		if err := s.moveTo(ctx, result); err != nil {
			return nil, err
		}
	}

	s.publish(ctx, created, stage.StageName, previous, newStatus, result.Completed)
	return result, nil
}

// begin checks the session may write and enters its stage if discarded.
// The current stage must still be allowed by the owner's access.
func (s *Session) begin(ctx context.Context) (*entity.WorkflowStage, error) {
	switch s.machine.State() {
	case workflow.StateComplete:
		return nil, ErrSessionComplete
	case workflow.StateReleased:
		return nil, ErrSessionReleased
	}

	stage := s.stages[s.stageIdx]
	if !s.access.Allows(stage) {
		return nil, fmt.Errorf("%w: %s", ErrStageNotAccessible, stage.StageName)
	}

	if s.machine.State() == workflow.StateNotStarted {
		if err := s.machine.Fire(ctx, workflow.TriggerEnter); err != nil {
			return nil, err
		}
	}
	return stage, nil
}

// moveTo reports the stage the session now sits on, or releases the session
// when the owner may not act on it.
func (s *Session) moveTo(ctx context.Context, result *SubmitResult) error {
	next := s.stages[s.stageIdx]
	if s.access.Allows(next) {
		result.NextStage = next.StageName
		result.NextPane = s.panes[next.ID][0]
		return nil
	}

	if err := s.machine.Fire(ctx, workflow.TriggerRelease); err != nil {
		return err
	}
	result.Released = true
	result.Outcome = string(workflow.OutcomeNotAuthorized)
	s.driver.logger.Info("Lifecycle session released",
		"session_id", s.id,
		"transaction_ref", s.ref,
		"actor_id", s.actorID,
		"next_stage", next.StageName,
	)
	return nil
}

// Reject sends the transaction back from a rejectable stage. Without a reject
// target, or when the target is the first stage, the status becomes
// "rejected" and resolution returns to data entry. Otherwise the status marks
// the stage before the target as completed so resolution lands on the target.
// Like SubmitPane, a discarded session re-enters its start stage first.
func (s *Session) Reject(ctx context.Context, reason string) (*SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stage, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	if !stage.IsRejectable {
		return nil, fmt.Errorf("%w: %s", ErrStageNotRejectable, stage.StageName)
	}

	targetIdx, explicit := s.rejectTarget(stage)
	status := workflow.RejectedStatus()
	if explicit && targetIdx > 0 {
		status = workflow.StageCompletedStatus(s.stages[targetIdx-1].StageName, s.channel.Channel())
	}
	newStatus := status.String()

	previous, created, err := s.persist(ctx, stage, newStatus, entity.ActionRejected, reason)
	if err != nil {
		return nil, err
	}
	if err := s.machine.Fire(ctx, workflow.TriggerRework); err != nil {
		return nil, err
	}

	s.stageIdx = targetIdx
	s.paneIdx = 0
	result := &SubmitResult{
		TransactionRef: s.ref,
		Status:         newStatus,
	}
	if err := s.moveTo(ctx, result); err != nil {
		return nil, err
	}

	s.publish(ctx, created, stage.StageName, previous, newStatus, false)
	if d := s.driver.dispatcher; d != nil {
		d.DispatchAsync(ctx, event.NewEventWithCorrelation(event.TypeTransactionRejected, s.ref, map[string]interface{}{
			event.KeyStageName: stage.StageName,
			event.KeyReason:    reason,
		}, s.id))
	}
	return result, nil
}

// rejectTarget returns the index of RejectToStageID (explicit=true), or of
// the first data entry stage, or 0.
func (s *Session) rejectTarget(stage *entity.WorkflowStage) (idx int, explicit bool) {
	if stage.RejectToStageID != nil {
		for i, st := range s.stages {
			if st.ID == *stage.RejectToStageID {
				return i, true
			}
		}
	}
	for i, st := range s.stages {
		if st.IsDataEntry() {
			return i, false
		}
	}
	return 0, false
}

// Discard drops in-memory progress: position and form data return to how the
// session was opened and a reference generated by this session is cleared.
// Nothing already persisted is touched.
func (s *Session) Discard(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.machine.State() {
	case workflow.StateComplete:
		return ErrSessionComplete
	case workflow.StateReleased:
		return ErrSessionReleased
	}
	if s.machine.State() == workflow.StateInStage {
		if err := s.machine.Fire(ctx, workflow.TriggerDiscard); err != nil {
			return err
		}
	}

	discarded := s.ref
	s.stageIdx = s.startIdx
	s.paneIdx = 0
	s.formData = copyData(s.initialData)
	s.ref = s.initialRef
	s.status = s.initialStatus

	s.driver.logger.Info("Lifecycle session discarded", "session_id", s.id, "transaction_ref", discarded)
	if d := s.driver.dispatcher; d != nil {
		d.DispatchAsync(ctx, event.NewEventWithCorrelation(event.TypeTransactionDiscarded, discarded, nil, s.id))
	}
	return nil
}

func (s *Session) enter(trigger workflow.Trigger) error {
	return s.machine.Fire(context.Background(), trigger)
}

// persist writes the record and its history row in one transaction. The
// reference is generated on the first write and kept for every later one.
func (s *Session) persist(ctx context.Context, stage *entity.WorkflowStage, newStatus, action, note string) (previous string, created bool, err error) {
	d := s.driver
	now := d.now()

	ref := s.ref
	if ref == "" {
		ref = NewTransactionRef(s.template.ProductCode, now, d.suffix())
		created = true
	}

	formJSON, err := json.Marshal(s.formData)
	if err != nil {
		return "", false, fmt.Errorf("failed to encode form data: %w", err)
	}

	initiating := s.channel.InitiatingChannel
	if initiating == "" {
		initiating = string(s.channel.Channel())
	}

	previous = s.status
	record := &entity.TransactionRecord{
		TransactionRef:    ref,
		ProductCode:       s.template.ProductCode,
		EventCode:         s.template.EventCode,
		EventLabel:        s.eventLabel,
		BusinessApp:       s.channel.BusinessCentre,
		InitiatingChannel: initiating,
		Status:            newStatus,
		FormData:          string(formJSON),
		UpdatedAt:         now,
	}

	actionData, err := json.Marshal(map[string]interface{}{
		"session_id": s.id,
		"channel":    s.channel.Channel(),
		"note":       note,
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to encode action data: %w", err)
	}

	err = d.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := d.recorder.CreateTransactionRecord(txCtx, record); err != nil {
			return fmt.Errorf("save transaction record: %w", err)
		}
		history := &entity.TransactionHistory{
			TransactionRef: ref,
			StageName:      stage.StageName,
			PreviousStatus: previous,
			NewStatus:      newStatus,
			ActionType:     action,
			ActorID:        s.actorID,
			ActionData:     string(actionData),
			Timestamp:      now,
		}
		if err := d.history.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history: %w", err)
		}
		return nil
	})
	if err != nil {
		d.logger.Error("Failed to persist transaction status",
			"session_id", s.id,
			"transaction_ref", ref,
			"status", newStatus,
			"error", err,
		)
		return "", false, err
	}

	s.ref = ref
	s.status = newStatus
	d.logger.Info("Transaction status written",
		"session_id", s.id,
		"transaction_ref", ref,
		"previous_status", previous,
		"new_status", newStatus,
	)
	return previous, created, nil
}

func (s *Session) publish(ctx context.Context, created bool, stageName, previous, newStatus string, completed bool) {
	d := s.driver.dispatcher
	if d == nil {
		return
	}

	payload := map[string]interface{}{
		event.KeyProductCode:    s.template.ProductCode,
		event.KeyEventCode:      s.template.EventCode,
		event.KeyStageName:      stageName,
		event.KeyPreviousStatus: previous,
		event.KeyNewStatus:      newStatus,
		event.KeyChannel:        string(s.channel.Channel()),
	}

	if created {
		d.DispatchAsync(ctx, event.NewEventWithCorrelation(event.TypeTransactionCreated, s.ref, payload, s.id))
	}
	d.DispatchAsync(ctx, event.NewEventWithCorrelation(event.TypeStatusChanged, s.ref, payload, s.id))
	if completed {
		d.DispatchAsync(ctx, event.NewEventWithCorrelation(event.TypeTransactionCompleted, s.ref, payload, s.id))
	}
}
