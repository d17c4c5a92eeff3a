package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/garyjia/tradeflow/internal/application/port"
	"github.com/garyjia/tradeflow/internal/domain/entity"
	"go.uber.org/zap"
)

// entry holds one cached lookup. A nil template is cached too so that
// unconfigured product/event pairs do not hit the store on every resolution.
type entry[T any] struct {
	value     T
	expiresAt time.Time
}

func (e entry[T]) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// Stats is a point-in-time view of the cache counters
type Stats struct {
	Templates int   `json:"templates"`
	Stages    int   `json:"stages"`
	Fields    int   `json:"fields"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
}

// TemplateCache decorates a port.TemplateStore with time-based expiry.
// Store errors are never cached.
type TemplateCache struct {
	store  port.TemplateStore
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu        sync.RWMutex
	templates map[string]entry[*entity.WorkflowTemplate]
	stages    map[int64]entry[[]*entity.WorkflowStage]
	fields    map[int64]entry[[]*entity.StageField]
	hits      int64
	misses    int64
}

// Option configures the TemplateCache
type Option func(*TemplateCache)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(c *TemplateCache) {
		c.now = now
	}
}

// NewTemplateCache creates a cache in front of store
func NewTemplateCache(store port.TemplateStore, ttl time.Duration, logger *zap.Logger, opts ...Option) *TemplateCache {
	c := &TemplateCache{
		store:     store,
		ttl:       ttl,
		now:       time.Now,
		logger:    logger,
		templates: make(map[string]entry[*entity.WorkflowTemplate]),
		stages:    make(map[int64]entry[[]*entity.WorkflowStage]),
		fields:    make(map[int64]entry[[]*entity.StageField]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func templateKey(productCode, eventCode, triggerType string) string {
	return strings.ToUpper(productCode) + "|" + strings.ToUpper(eventCode) + "|" + strings.ToLower(triggerType)
}

// FindWorkflowTemplate implements port.TemplateStore
func (c *TemplateCache) FindWorkflowTemplate(ctx context.Context, productCode, eventCode, triggerType string) (*entity.WorkflowTemplate, error) {
	key := templateKey(productCode, eventCode, triggerType)
	if tmpl, ok := lookup(c, c.templates, key); ok {
		return tmpl, nil
	}

	tmpl, err := c.store.FindWorkflowTemplate(ctx, productCode, eventCode, triggerType)
	if err != nil {
		return nil, err
	}
	storeEntry(c, c.templates, key, tmpl)
	return tmpl, nil
}

// GetTemplateStages implements port.TemplateStore
func (c *TemplateCache) GetTemplateStages(ctx context.Context, templateID int64) ([]*entity.WorkflowStage, error) {
	if stages, ok := lookup(c, c.stages, templateID); ok {
		return stages, nil
	}

	stages, err := c.store.GetTemplateStages(ctx, templateID)
	if err != nil {
		return nil, err
	}
	storeEntry(c, c.stages, templateID, stages)
	return stages, nil
}

// GetStageFields implements port.TemplateStore
func (c *TemplateCache) GetStageFields(ctx context.Context, stageID int64) ([]*entity.StageField, error) {
	if fields, ok := lookup(c, c.fields, stageID); ok {
		return fields, nil
	}

	fields, err := c.store.GetStageFields(ctx, stageID)
	if err != nil {
		return nil, err
	}
	storeEntry(c, c.fields, stageID, fields)
	return fields, nil
}

func lookup[K comparable, T any](c *TemplateCache, m map[K]entry[T], key K) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := m[key]
	if ok && !e.expired(c.now()) {
		c.hits++
		return e.value, true
	}
	c.misses++
	var zero T
	return zero, false
}

func storeEntry[K comparable, T any](c *TemplateCache, m map[K]entry[T], key K, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m[key] = entry[T]{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Invalidate drops every cached entry; called after a template import
func (c *TemplateCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.templates = make(map[string]entry[*entity.WorkflowTemplate])
	c.stages = make(map[int64]entry[[]*entity.WorkflowStage])
	c.fields = make(map[int64]entry[[]*entity.StageField])
	c.logger.Info("Template cache invalidated")
}

// PurgeExpired removes expired entries and returns how many were removed
func (c *TemplateCache) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	return purge(c.templates, now) + purge(c.stages, now) + purge(c.fields, now)
}

func purge[K comparable, T any](m map[K]entry[T], now time.Time) int {
	n := 0
	for k, e := range m {
		if e.expired(now) {
			delete(m, k)
			n++
		}
	}
	return n
}

// Stats returns the current counters
func (c *TemplateCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{
		Templates: len(c.templates),
		Stages:    len(c.stages),
		Fields:    len(c.fields),
		Hits:      c.hits,
		Misses:    c.misses,
	}
}

var _ port.TemplateStore = (*TemplateCache)(nil)
