package workflow

import (
	"context"
	"fmt"
	"sort"
)

// GuardFunc decides whether a transition may be taken
type GuardFunc func(ctx context.Context) bool

// StateMachine tracks the current phase and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is configured for the current state
	CanFire(trigger Trigger) bool

	// Fire executes the trigger, moving to the target state if a guard allows it
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns the triggers configured for the current state, sorted
	PermittedTriggers() []Trigger
}

// Builder collects transition rules and builds independent machines from them
type Builder struct {
	rules map[State]map[Trigger][]transition
}

type transition struct {
	to    State
	guard GuardFunc
}

// StateRules configures transitions leaving one state
type StateRules struct {
	from  State
	rules map[Trigger][]transition
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{rules: make(map[State]map[Trigger][]transition)}
}

// Configure returns the rules for the given state, creating them on first use
func (b *Builder) Configure(state State) *StateRules {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}

	rules, ok := b.rules[state]
	if !ok {
		rules = make(map[Trigger][]transition)
		b.rules[state] = rules
	}
	return &StateRules{from: state, rules: rules}
}

// Permit allows trigger to move to toState unconditionally
func (r *StateRules) Permit(trigger Trigger, toState State) *StateRules {
	return r.PermitIf(trigger, toState, nil)
}

// PermitReentry allows trigger to keep the machine in the same state
func (r *StateRules) PermitReentry(trigger Trigger) *StateRules {
	return r.PermitIf(trigger, r.from, nil)
}

// PermitIf allows trigger to move to toState when guard passes.
// Guards are tried in registration order.
func (r *StateRules) PermitIf(trigger Trigger, toState State, guard GuardFunc) *StateRules {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}
	r.rules[trigger] = append(r.rules[trigger], transition{to: toState, guard: guard})
	return r
}

// Build creates a machine positioned at initialState. Rules are copied so
// machines built from the same builder never share state.
func (b *Builder) Build(initialState State) StateMachine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}

	rules := make(map[State]map[Trigger][]transition, len(b.rules))
	for state, byTrigger := range b.rules {
		cp := make(map[Trigger][]transition, len(byTrigger))
		for trigger, ts := range byTrigger {
			cp[trigger] = append([]transition(nil), ts...)
		}
		rules[state] = cp
	}

	return &machine{current: initialState, rules: rules}
}

type machine struct {
	current State
	rules   map[State]map[Trigger][]transition
}

func (m *machine) State() State {
	return m.current
}

func (m *machine) CanFire(trigger Trigger) bool {
	return len(m.rules[m.current][trigger]) > 0
}

func (m *machine) Fire(ctx context.Context, trigger Trigger) error {
	candidates := m.rules[m.current][trigger]
	if len(candidates) == 0 {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.current)
	}

	for _, t := range candidates {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.to
			return nil
		}
	}

	return fmt.Errorf("%w: %s from %s", ErrGuardFailed, trigger, m.current)
}

func (m *machine) PermittedTriggers() []Trigger {
	byTrigger := m.rules[m.current]
	triggers := make([]Trigger, 0, len(byTrigger))
	for trigger := range byTrigger {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
