package permission

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/garyjia/tradeflow/internal/application/dispatcher"
	"github.com/garyjia/tradeflow/internal/application/port"
	"github.com/garyjia/tradeflow/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Registry keeps one Resolver per user and loads snapshots through a PermissionSource
type Registry struct {
	source     port.PermissionSource
	logger     Logger
	dispatcher dispatcher.Dispatcher

	mu        sync.RWMutex
	resolvers map[string]*Resolver
}

// RegistryOption configures optional Registry dependencies
type RegistryOption func(*Registry)

// WithDispatcher publishes permissions.loaded events after each successful load
func WithDispatcher(d dispatcher.Dispatcher) RegistryOption {
	return func(r *Registry) {
		r.dispatcher = d
	}
}

// NewRegistry creates a Registry
func NewRegistry(source port.PermissionSource, logger Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		source:    source,
		logger:    logger,
		resolvers: make(map[string]*Resolver),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the user's resolver, creating a NotLoaded one on first use
func (r *Registry) Get(userID string) *Resolver {
	r.mu.RLock()
	res, ok := r.resolvers[userID]
	r.mu.RUnlock()
	if ok {
		return res
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok = r.resolvers[userID]; ok {
		return res
	}
	res = NewResolver()
	r.resolvers[userID] = res
	return res
}

// Load fetches the user's snapshot into a fresh resolver and swaps it in
// once complete, so a Loaded snapshot stays visible while a reload runs. On
// failure the returned resolver is Failed and answers every query with no
// access; it replaces the registered one only if that is not Loaded.
func (r *Registry) Load(ctx context.Context, userID string) (*Resolver, error) {
	res := NewResolver()
	res.BeginLoad()

	snapshot, err := r.source.FetchPermissions(ctx, userID)
	if err != nil {
		res.Fail(err)
		r.mu.Lock()
		if cur, ok := r.resolvers[userID]; !ok || cur.State() != Loaded {
			r.resolvers[userID] = res
		}
		r.mu.Unlock()
		r.logger.Error("Failed to load permissions", "user_id", userID, "error", err)
		return res, fmt.Errorf("failed to load permissions for %s: %w", userID, err)
	}

	res.SetSnapshot(snapshot)
	r.mu.Lock()
	r.resolvers[userID] = res
	r.mu.Unlock()

	r.logger.Info("Permissions loaded",
		"user_id", userID,
		"super_user", res.IsSuperUser(),
		"grant_count", len(res.Snapshot().ProductPermissions),
	)

	if r.dispatcher != nil {
		r.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypePermissionsLoaded, "", map[string]interface{}{
			event.KeyUserID: userID,
			event.KeyCount:  len(res.Snapshot().ProductPermissions),
		}))
	}

	return res, nil
}

// Ensure returns a loaded resolver, loading it when it is not already Loaded
func (r *Registry) Ensure(ctx context.Context, userID string) (*Resolver, error) {
	res := r.Get(userID)
	if res.State() == Loaded {
		return res, nil
	}
	return r.Load(ctx, userID)
}

// Invalidate drops the user's resolver so the next Ensure reloads
func (r *Registry) Invalidate(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.resolvers, userID)
}

// Users returns the users with a resolver, sorted
func (r *Registry) Users() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]string, 0, len(r.resolvers))
	for u := range r.resolvers {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}
