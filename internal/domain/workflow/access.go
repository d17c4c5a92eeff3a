package workflow

import (
	"sort"
	"strings"

	"github.com/garyjia/tradeflow/internal/domain/entity"
	"github.com/samber/lo"
)

// Access is the set of stages a user may act on for one product/event pair.
// It unifies actor-type grants and stage-name grants; the zero value allows nothing.
type Access struct {
	super      bool
	actorTypes map[string]struct{}
	stageNames map[string]struct{}
}

// NoAccess allows no stage
func NoAccess() Access {
	return Access{}
}

// SuperAccess allows every stage
func SuperAccess() Access {
	return Access{super: true}
}

// AccessFromActorTypes interprets an accessible-actor-type list. An empty list
// or one containing WildcardAll means super user.
func AccessFromActorTypes(actorTypes []string) Access {
	if len(actorTypes) == 0 || containsFold(actorTypes, entity.WildcardAll) {
		return SuperAccess()
	}
	return NewAccess(actorTypes, nil)
}

// NewAccess builds access from explicit actor types and stage names. Unlike
// AccessFromActorTypes, empty inputs mean no access.
func NewAccess(actorTypes, stageNames []string) Access {
	a := Access{
		actorTypes: toSet(actorTypes),
		stageNames: toSet(stageNames),
	}
	if _, ok := a.actorTypes[wildcardKey]; ok {
		a.super = true
	}
	if _, ok := a.stageNames[wildcardKey]; ok {
		a.super = true
	}
	return a
}

var wildcardKey = strings.ToLower(entity.WildcardAll)

// IsSuper reports whether every stage is accessible
func (a Access) IsSuper() bool {
	return a.super
}

// IsEmpty reports whether nothing at all is granted
func (a Access) IsEmpty() bool {
	return !a.super && len(a.actorTypes) == 0 && len(a.stageNames) == 0
}

// Allows reports whether the stage is accessible. Empty access denies
// everything, __ALL__ stages included: a user with no grant on the pair is
// not one of its actors.
func (a Access) Allows(stage *entity.WorkflowStage) bool {
	if stage == nil || a.IsEmpty() {
		return false
	}
	if a.super || strings.EqualFold(stage.ActorType, entity.WildcardAll) {
		return true
	}
	if _, ok := a.actorTypes[strings.ToLower(stage.ActorType)]; ok && stage.ActorType != "" {
		return true
	}
	_, ok := a.stageNames[strings.ToLower(stage.StageName)]
	return ok
}

// ActorTypes returns the granted actor types, lower-cased and sorted
func (a Access) ActorTypes() []string {
	keys := lo.Keys(a.actorTypes)
	sort.Strings(keys)
	return keys
}

// StageNames returns the granted stage names, lower-cased and sorted
func (a Access) StageNames() []string {
	keys := lo.Keys(a.stageNames)
	sort.Strings(keys)
	return keys
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func containsFold(values []string, target string) bool {
	return lo.ContainsBy(values, func(v string) bool {
		return strings.EqualFold(strings.TrimSpace(v), target)
	})
}
