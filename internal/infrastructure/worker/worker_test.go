package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingPurger struct {
	calls atomic.Int32
}

func (p *countingPurger) PurgeExpired() int {
	p.calls.Add(1)
	return 2
}

type stubWorker struct {
	name     string
	startErr error
	started  bool
	stopped  bool
}

func (w *stubWorker) Start(ctx context.Context) error {
	if w.startErr != nil {
		return w.startErr
	}
	w.started = true
	return nil
}

func (w *stubWorker) Stop() error {
	w.stopped = true
	return nil
}

func (w *stubWorker) Name() string { return w.name }

func TestCacheJanitor_PurgesOnTick(t *testing.T) {
	purger := &countingPurger{}
	j := NewCacheJanitor(purger, 5*time.Millisecond, zap.NewNop())

	require.NoError(t, j.Start(context.Background()))
	assert.True(t, j.IsRunning())
	assert.Error(t, j.Start(context.Background()))

	assert.Eventually(t, func() bool { return purger.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, j.Stop())
	assert.False(t, j.IsRunning())
	assert.GreaterOrEqual(t, j.Purged(), 4)
	require.NoError(t, j.Stop())
}

func TestCacheJanitor_RejectsZeroInterval(t *testing.T) {
	j := NewCacheJanitor(&countingPurger{}, 0, zap.NewNop())
	assert.Error(t, j.Start(context.Background()))
	assert.Equal(t, 2, j.RunOnce())
}

func TestWorkerManager_Lifecycle(t *testing.T) {
	m := NewWorkerManager(zap.NewNop())
	ok := &stubWorker{name: "ok"}
	broken := &stubWorker{name: "broken", startErr: errors.New("no")}
	janitor := NewCacheJanitor(&countingPurger{}, time.Hour, zap.NewNop())

	m.Register(ok)
	m.Register(broken)
	m.Register(janitor)
	assert.Equal(t, 3, m.GetWorkerCount())

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.True(t, ok.started)
	assert.Error(t, m.StartAll(context.Background()))

	statuses := m.Statuses()
	require.Len(t, statuses, 3)
	assert.Equal(t, Status{Name: "CacheJanitor", Running: true}, statuses[2])

	require.NoError(t, m.StopAll())
	assert.True(t, ok.stopped)
	assert.False(t, m.IsRunning())
	assert.False(t, janitor.IsRunning())
	require.NoError(t, m.StopAll())
}
