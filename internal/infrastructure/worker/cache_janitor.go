package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Purger drops expired cache entries and reports how many went
type Purger interface {
	PurgeExpired() int
}

// CacheJanitor periodically purges expired template cache entries
type CacheJanitor struct {
	purger   Purger
	interval time.Duration
	logger   *zap.Logger

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	purged    int
}

// NewCacheJanitor creates a janitor that runs every interval
func NewCacheJanitor(purger Purger, interval time.Duration, logger *zap.Logger) *CacheJanitor {
	return &CacheJanitor{
		purger:   purger,
		interval: interval,
		logger:   logger,
	}
}

// Start begins the purge loop
func (j *CacheJanitor) Start(ctx context.Context) error {
	if j.interval <= 0 {
		return fmt.Errorf("cache janitor interval must be positive, got %s", j.interval)
	}

	j.mu.Lock()
	if j.isRunning {
		j.mu.Unlock()
		return fmt.Errorf("cache janitor already running")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})
	j.isRunning = true
	j.mu.Unlock()

	j.logger.Info("CacheJanitor started", zap.Duration("interval", j.interval))
	go j.loop(loopCtx, j.done)
	return nil
}

func (j *CacheJanitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce()
		}
	}
}

// RunOnce purges expired entries immediately
func (j *CacheJanitor) RunOnce() int {
	n := j.purger.PurgeExpired()

	j.mu.Lock()
	j.purged += n
	j.mu.Unlock()

	if n > 0 {
		j.logger.Debug("Purged expired cache entries", zap.Int("count", n))
	}
	return n
}

// Stop terminates the loop and waits for it to exit
func (j *CacheJanitor) Stop() error {
	j.mu.Lock()
	if !j.isRunning {
		j.mu.Unlock()
		return nil
	}
	j.isRunning = false
	cancel, done := j.cancel, j.done
	j.mu.Unlock()

	cancel()
	<-done

	j.logger.Info("CacheJanitor stopped", zap.Int("purged_total", j.Purged()))
	return nil
}

// Name returns the worker name for identification
func (j *CacheJanitor) Name() string {
	return "CacheJanitor"
}

// IsRunning reports whether the loop is active
func (j *CacheJanitor) IsRunning() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.isRunning
}

// Purged returns the total number of entries purged so far
func (j *CacheJanitor) Purged() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.purged
}

var _ Worker = (*CacheJanitor)(nil)
