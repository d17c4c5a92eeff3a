package permission

import (
	"sort"
	"strings"
	"sync"

	"github.com/garyjia/tradeflow/internal/domain/entity"
	"github.com/garyjia/tradeflow/internal/domain/workflow"
	"github.com/samber/lo"
)

// Resolver answers permission queries over one user's snapshot. Until a
// snapshot is loaded every query answers "no access".
type Resolver struct {
	mu       sync.RWMutex
	state    LoadState
	snapshot *entity.PermissionSnapshot
	err      error
}

// NewResolver creates a resolver in the NotLoaded state
func NewResolver() *Resolver {
	return &Resolver{state: NotLoaded}
}

// NewLoadedResolver creates a resolver already holding snapshot
func NewLoadedResolver(snapshot *entity.PermissionSnapshot) *Resolver {
	r := NewResolver()
	r.SetSnapshot(snapshot)
	return r
}

// BeginLoad marks a load in progress. The previous snapshot stays hidden until
// SetSnapshot so no query runs against a partial load.
func (r *Resolver) BeginLoad() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Loading
	r.err = nil
}

// SetSnapshot installs a fully loaded snapshot
func (r *Resolver) SetSnapshot(snapshot *entity.PermissionSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if snapshot == nil {
		snapshot = &entity.PermissionSnapshot{}
	}
	r.snapshot = snapshot
	r.state = Loaded
	r.err = nil
}

// Fail records a load failure and drops any snapshot
func (r *Resolver) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot = nil
	r.state = Failed
	r.err = err
}

// State returns the current load state
func (r *Resolver) State() LoadState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Err returns the last load error, if the state is Failed
func (r *Resolver) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Snapshot returns the loaded snapshot or nil
func (r *Resolver) Snapshot() *entity.PermissionSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state != Loaded {
		return nil
	}
	return r.snapshot
}

// IsSuperUser reports whether the loaded snapshot is a super user
func (r *Resolver) IsSuperUser() bool {
	snap := r.Snapshot()
	return snap != nil && snap.IsSuperUser
}

// AccessibleStages returns the distinct stage names of active grants for the
// pair. A super user gets an empty slice meaning "all"; check IsSuperUser
// before treating empty as no access.
func (r *Resolver) AccessibleStages(productCode, eventCode string) []string {
	snap := r.Snapshot()
	if snap == nil {
		return []string{}
	}
	if snap.IsSuperUser {
		return []string{}
	}

	names := lo.FilterMap(r.grants(snap, productCode, eventCode), func(g entity.AccessGrant, _ int) (string, bool) {
		name := strings.TrimSpace(g.StageName)
		return name, name != ""
	})
	return lo.Uniq(names)
}

// HasStageAccess reports whether the user may act on stageName. A WildcardAll
// grant matches every stage.
func (r *Resolver) HasStageAccess(productCode, eventCode, stageName string) bool {
	snap := r.Snapshot()
	if snap == nil {
		return false
	}
	if snap.IsSuperUser {
		return true
	}

	return lo.ContainsBy(r.grants(snap, productCode, eventCode), func(g entity.AccessGrant) bool {
		return strings.EqualFold(g.StageName, entity.WildcardAll) ||
			strings.EqualFold(strings.TrimSpace(g.StageName), strings.TrimSpace(stageName))
	})
}

// AccessibleActorTypes returns the actor types of active grants for the pair,
// sorted. A super user or a wildcard grant yields []string{WildcardAll}; an
// unloaded snapshot yields nil.
func (r *Resolver) AccessibleActorTypes(productCode, eventCode string) []string {
	snap := r.Snapshot()
	if snap == nil {
		return nil
	}
	if snap.IsSuperUser {
		return []string{entity.WildcardAll}
	}

	grants := r.grants(snap, productCode, eventCode)
	if lo.ContainsBy(grants, isWildcardGrant) {
		return []string{entity.WildcardAll}
	}

	types := lo.Uniq(lo.FilterMap(grants, func(g entity.AccessGrant, _ int) (string, bool) {
		at := strings.TrimSpace(g.ActorType)
		return at, at != ""
	}))
	sort.Strings(types)
	return types
}

// Access resolves the snapshot into the stage access model for the pair
func (r *Resolver) Access(productCode, eventCode string) workflow.Access {
	snap := r.Snapshot()
	if snap == nil {
		return workflow.NoAccess()
	}
	if snap.IsSuperUser {
		return workflow.SuperAccess()
	}

	grants := r.grants(snap, productCode, eventCode)
	if len(grants) == 0 {
		return workflow.NoAccess()
	}

	actorTypes := lo.Map(grants, func(g entity.AccessGrant, _ int) string { return g.ActorType })
	stageNames := lo.Map(grants, func(g entity.AccessGrant, _ int) string { return g.StageName })
	return workflow.NewAccess(actorTypes, stageNames)
}

// ScreenAccess reports view and edit rights on a non-workflow screen
func (r *Resolver) ScreenAccess(screenCode string) (canView, canEdit bool) {
	snap := r.Snapshot()
	if snap == nil {
		return false, false
	}
	if snap.IsSuperUser {
		return true, true
	}
	for _, sp := range snap.ScreenPermissions {
		if strings.EqualFold(sp.ScreenCode, screenCode) {
			canView = canView || sp.CanView
			canEdit = canEdit || sp.CanEdit
		}
	}
	return canView, canEdit
}

// grants returns the active grants for the pair. Empty codes match nothing.
func (r *Resolver) grants(snap *entity.PermissionSnapshot, productCode, eventCode string) []entity.AccessGrant {
	productCode = strings.TrimSpace(productCode)
	eventCode = strings.TrimSpace(eventCode)
	if productCode == "" || eventCode == "" {
		return nil
	}

	return lo.Filter(snap.ProductPermissions, func(g entity.AccessGrant, _ int) bool {
		return g.IsActive() &&
			strings.EqualFold(g.ProductCode, productCode) &&
			strings.EqualFold(g.EventCode, eventCode)
	})
}

func isWildcardGrant(g entity.AccessGrant) bool {
	return strings.EqualFold(g.StageName, entity.WildcardAll) || strings.EqualFold(g.ActorType, entity.WildcardAll)
}
