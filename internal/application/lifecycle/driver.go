package lifecycle

import (
	"fmt"
	"time"

	"github.com/garyjia/tradeflow/internal/application/dispatcher"
	"github.com/garyjia/tradeflow/internal/application/port"
	"github.com/garyjia/tradeflow/internal/application/resolver"
	"github.com/garyjia/tradeflow/internal/domain/entity"
	"github.com/garyjia/tradeflow/internal/domain/workflow"
	"github.com/google/uuid"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Driver opens lifecycle sessions and owns what they share: persistence,
// events and the reference generator.
type Driver struct {
	recorder   port.TransactionRecorder
	history    port.HistoryRepository
	txManager  port.TransactionManager
	logger     Logger
	dispatcher dispatcher.Dispatcher

	issuanceEvents []string
	now            func() time.Time
	suffix         func() string
}

// Option configures the Driver
type Option func(*Driver)

// WithDispatcher publishes lifecycle events
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(dr *Driver) {
		dr.dispatcher = d
	}
}

// WithIssuanceEvents sets the event codes whose final approval writes "issued"
func WithIssuanceEvents(codes ...string) Option {
	return func(dr *Driver) {
		dr.issuanceEvents = append([]string(nil), codes...)
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(dr *Driver) {
		dr.now = now
	}
}

// WithReferenceSuffix overrides the random part of generated transaction references
func WithReferenceSuffix(suffix func() string) Option {
	return func(dr *Driver) {
		dr.suffix = suffix
	}
}

// NewDriver creates a Driver
func NewDriver(
	recorder port.TransactionRecorder,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	logger Logger,
	opts ...Option,
) *Driver {
	d := &Driver{
		recorder:       recorder,
		history:        history,
		txManager:      txManager,
		logger:         logger,
		issuanceEvents: []string{"ISS"},
		now:            time.Now,
		suffix:         randomSuffix,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OpenParams describes the transaction a session works on
type OpenParams struct {
	// Target is the resolver's answer for the current user; it must hold a stage
	Target workflow.ResolvedTarget
	// Stages is the template's stage list in any order
	Stages []*entity.WorkflowStage
	// Panes maps stage ID to pane names; missing stages get one pane
	Panes map[int64][]string

	// Access is the owner's access for the template's pair. Every stage the
	// session works on must be allowed by it.
	Access workflow.Access

	Channel    workflow.ChannelContext
	EventLabel string
	ActorID    string

	// Existing transaction state, empty for a new transaction
	TransactionRef string
	Status         string
	FormData       map[string]interface{}
}

// Open starts a session positioned on the target stage
func (d *Driver) Open(p OpenParams) (*Session, error) {
	if !p.Target.HasStage() || p.Target.Template == nil {
		return nil, ErrNoStage
	}

	stages := resolver.SortStages(p.Stages)
	start := -1
	for i, s := range stages {
		if s.ID == p.Target.Stage.ID && s.StageName == p.Target.Stage.StageName {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("%w: %s", ErrStageNotInTemplate, p.Target.StageName)
	}
	if !p.Access.Allows(stages[start]) {
		return nil, fmt.Errorf("%w: %s", ErrStageNotAccessible, p.Target.StageName)
	}

	panes := make(map[int64][]string, len(stages))
	for _, s := range stages {
		if names := p.Panes[s.ID]; len(names) > 0 {
			panes[s.ID] = append([]string(nil), names...)
		} else {
			panes[s.ID] = []string{s.StageName}
		}
	}

	s := &Session{
		id:         uuid.NewString(),
		driver:     d,
		template:   p.Target.Template,
		stages:     stages,
		panes:      panes,
		channel:    p.Channel,
		flow:       FlowFor(p.Target.Template.EventCode, d.issuanceEvents),
		eventLabel: p.EventLabel,
		actorID:    p.ActorID,
		access:     p.Access,
		startIdx:   start,
		stageIdx:   start,
		ref:        p.TransactionRef,
		status:     p.Status,
		formData:   copyData(p.FormData),
		machine:    workflow.NewLifecycleMachine(workflow.StateNotStarted),

		initialRef:    p.TransactionRef,
		initialStatus: p.Status,
		initialData:   copyData(p.FormData),
	}

	if err := s.enter(entryTrigger(p.Status)); err != nil {
		return nil, err
	}

	d.logger.Info("Lifecycle session opened",
		"session_id", s.id,
		"transaction_ref", s.ref,
		"stage", s.CurrentStage().StageName,
		"channel", p.Channel.Channel(),
	)
	return s, nil
}

// entryTrigger picks how a session enters its first stage from the stored status
func entryTrigger(status string) workflow.Trigger {
	switch workflow.ParseStatus(status).Kind {
	case workflow.StatusSentToBank:
		return workflow.TriggerHandoff
	case workflow.StatusRejected, workflow.StatusDraft:
		return workflow.TriggerRework
	default:
		return workflow.TriggerEnter
	}
}

func copyData(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
