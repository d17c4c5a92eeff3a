package permission

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/garyjia/tradeflow/internal/application/dispatcher"
	"github.com/garyjia/tradeflow/internal/domain/entity"
	"github.com/garyjia/tradeflow/internal/domain/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

type mockSource struct {
	mu    sync.Mutex
	calls int
	fetch func(ctx context.Context, userID string) (*entity.PermissionSnapshot, error)
}

func (m *mockSource) FetchPermissions(ctx context.Context, userID string) (*entity.PermissionSnapshot, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.fetch != nil {
		return m.fetch(ctx, userID)
	}
	return &entity.PermissionSnapshot{UserID: userID}, nil
}

func TestRegistry_LoadAndEnsure(t *testing.T) {
	src := &mockSource{fetch: func(ctx context.Context, userID string) (*entity.PermissionSnapshot, error) {
		return makerSnapshot(), nil
	}}
	reg := NewRegistry(src, &mockLogger{})

	assert.Equal(t, NotLoaded, reg.Get("u1").State())

	res, err := reg.Ensure(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, Loaded, res.State())
	assert.True(t, res.HasStageAccess("ILC", "ISS", "Data Entry"))

	_, err = reg.Ensure(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
	assert.Same(t, res, reg.Get("u1"))

	reg.Invalidate("u1")
	assert.Equal(t, NotLoaded, reg.Get("u1").State())
	assert.Equal(t, []string{"u1"}, reg.Users())
}

func TestRegistry_LoadFailureLeavesNoAccess(t *testing.T) {
	logger := &mockLogger{}
	src := &mockSource{fetch: func(ctx context.Context, userID string) (*entity.PermissionSnapshot, error) {
		return nil, errors.New("rpc unavailable")
	}}
	reg := NewRegistry(src, logger)

	res, err := reg.Load(context.Background(), "u2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc unavailable")
	assert.Equal(t, Failed, res.State())
	assert.False(t, res.HasStageAccess("ILC", "ISS", "Data Entry"))
	assert.Equal(t, []string{"Failed to load permissions"}, logger.errors)
}

func TestRegistry_PublishesLoadedEvent(t *testing.T) {
	d := dispatcher.NewDispatcher()
	var got *event.Event
	d.Subscribe(event.TypePermissionsLoaded, func(ctx context.Context, evt *event.Event) error {
		got = evt
		return nil
	})

	reg := NewRegistry(&mockSource{}, &mockLogger{}, WithDispatcher(d))
	_, err := reg.Load(context.Background(), "u3")
	require.NoError(t, err)
	require.NoError(t, d.Close())

	require.NotNil(t, got)
	assert.Equal(t, "u3", got.GetPayloadString(event.KeyUserID))
}

func TestRegistry_ReloadKeepsLoadedSnapshotVisible(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	src := &mockSource{}
	reg := NewRegistry(src, &mockLogger{})

	first, err := reg.Load(context.Background(), "u1")
	require.NoError(t, err)

	src.fetch = func(ctx context.Context, userID string) (*entity.PermissionSnapshot, error) {
		close(started)
		<-release
		return makerSnapshot(), nil
	}

	done := make(chan *Resolver)
	go func() {
		res, err := reg.Load(context.Background(), "u1")
		assert.NoError(t, err)
		done <- res
	}()
	<-started

	// a reader during the reload still sees the old snapshot without fetching
	res, err := reg.Ensure(context.Background(), "u1")
	require.NoError(t, err)
	assert.Same(t, first, res)
	assert.Equal(t, Loaded, res.State())
	assert.Equal(t, 2, src.calls)

	close(release)
	second := <-done
	assert.Same(t, second, reg.Get("u1"))
	assert.True(t, reg.Get("u1").HasStageAccess("ILC", "ISS", "Data Entry"))
}

func TestRegistry_FailedReloadKeepsLoadedSnapshot(t *testing.T) {
	src := &mockSource{fetch: func(ctx context.Context, userID string) (*entity.PermissionSnapshot, error) {
		return makerSnapshot(), nil
	}}
	reg := NewRegistry(src, &mockLogger{})

	loaded, err := reg.Load(context.Background(), "u1")
	require.NoError(t, err)

	src.fetch = func(ctx context.Context, userID string) (*entity.PermissionSnapshot, error) {
		return nil, errors.New("rpc unavailable")
	}
	failed, err := reg.Load(context.Background(), "u1")
	require.Error(t, err)
	assert.Equal(t, Failed, failed.State())

	assert.Same(t, loaded, reg.Get("u1"))
	assert.True(t, reg.Get("u1").HasStageAccess("ILC", "ISS", "Data Entry"))
}

func TestRegistry_FailedFirstLoadIsRegistered(t *testing.T) {
	src := &mockSource{fetch: func(ctx context.Context, userID string) (*entity.PermissionSnapshot, error) {
		return nil, errors.New("rpc unavailable")
	}}
	reg := NewRegistry(src, &mockLogger{})

	res, err := reg.Ensure(context.Background(), "u1")
	require.Error(t, err)
	assert.Same(t, res, reg.Get("u1"))
	assert.Equal(t, Failed, reg.Get("u1").State())
}
