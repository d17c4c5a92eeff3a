package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/tradeflow/internal/application/dispatcher"
	"github.com/garyjia/tradeflow/internal/application/port"
	"github.com/garyjia/tradeflow/internal/application/service"
	"github.com/garyjia/tradeflow/internal/infrastructure/metrics"
	"github.com/garyjia/tradeflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/tradeflow/internal/infrastructure/worker"
	"github.com/garyjia/tradeflow/pkg/database"
	"go.uber.org/zap"
)

// Container manages all application dependencies and lifecycle.
// It follows Clean Architecture principles with ordered initialization
// and reverse-order teardown.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	database     *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle
	templates    *TemplateBundle

	// Infrastructure - Observability
	metrics *metrics.Metrics

	// Application
	dispatcher dispatcher.Dispatcher
	engine     *EngineBundle
	services   *ServiceBundle

	// Workers
	workers *worker.WorkerManager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Template    port.TemplateRepository
	Stage       port.StageRepository
	Permission  port.PermissionRepository
	Transaction port.TransactionRepository
	History     port.HistoryRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Workflow service.WorkflowService
	Admin    service.AdminService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Database and repositories
// 2. Template store and metrics
// 3. Event dispatcher
// 4. Workflow engine and application services
// 5. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized", zap.String("path", c.database.Path()))

	if err := c.initTemplates(); err != nil {
		return fmt.Errorf("failed to initialize template store: %w", err)
	}
	c.metrics = ProvideMetrics(&c.config.Metrics)
	c.logger.Info("Template store initialized",
		zap.Bool("cache", c.templates.Cache != nil),
		zap.Bool("metrics", c.metrics != nil))

	disp, err := ProvideDispatcher(c.logger, c.metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}
	c.dispatcher = disp

	if err := c.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Workflow engine and services initialized")

	if err := c.initWorkers(); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started", zap.Int("count", c.workers.GetWorkerCount()))

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if c.database != nil {
		if err := c.database.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, h ComponentHealth) {
		status.Components[name] = h
		if !h.Healthy {
			status.Overall = false
		}
	}

	if c.database != nil {
		if err := c.database.Health(ctx); err != nil {
			set("database", ComponentHealth{Healthy: false, Message: fmt.Sprintf("ping failed: %v", err)})
		} else {
			set("database", ComponentHealth{Healthy: true})
		}
	} else {
		set("database", ComponentHealth{Healthy: false, Message: "not initialized"})
	}

	switch {
	case c.workers == nil:
		set("workers", ComponentHealth{Healthy: false, Message: "not initialized"})
	case c.workers.GetWorkerCount() == 0:
		set("workers", ComponentHealth{Healthy: true, Message: "no workers registered"})
	default:
		set("workers", ComponentHealth{
			Healthy: c.workers.IsRunning(),
			Message: fmt.Sprintf("worker count: %d", c.workers.GetWorkerCount()),
		})
	}

	switch {
	case c.dispatcher == nil:
		set("dispatcher", ComponentHealth{Healthy: false, Message: "not initialized"})
	case c.dispatcher.IsClosed():
		set("dispatcher", ComponentHealth{Healthy: false, Message: "closed"})
	default:
		set("dispatcher", ComponentHealth{Healthy: true})
	}

	if c.templates != nil && c.templates.Cache != nil {
		stats := c.templates.Cache.Stats()
		set("template_cache", ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("hits: %d, misses: %d", stats.Hits, stats.Misses),
		})
	}

	return status
}

// HealthReport flattens Health into component -> "ok" or failure message
func (c *Container) HealthReport(ctx context.Context) map[string]string {
	report := make(map[string]string)
	for name, h := range c.Health(ctx).Components {
		switch {
		case h.Healthy:
			report[name] = "ok"
		case h.Message != "":
			report[name] = h.Message
		default:
			report[name] = "unhealthy"
		}
	}
	return report
}

// initDatabase initializes the database and all repositories using providers.
func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.database = dbBundle.DB
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(dbBundle.SqlDB, c.db, c.logger)
	if err != nil {
		c.database.Close()
		return err
	}

	c.repositories = repos
	return nil
}

// initTemplates builds the (optionally cached) template store
func (c *Container) initTemplates() error {
	templates, err := ProvideTemplateStore(c.repositories, &c.config.Workflow, c.logger)
	if err != nil {
		return err
	}
	c.templates = templates
	return nil
}

// initServices creates the workflow engine and the application services on top of it.
func (c *Container) initServices() error {
	engine, err := ProvideEngine(&EngineDeps{
		Repos:      c.repositories,
		Templates:  c.templates.Store,
		TxManager:  c.db,
		Dispatcher: c.dispatcher,
		Metrics:    c.metrics,
		Config:     &c.config.Workflow,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.engine = engine

	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		Templates:  c.templates,
		Engine:     c.engine,
		TxManager:  c.db,
		Dispatcher: c.dispatcher,
		Metrics:    c.metrics,
		Config:     &c.config.Workflow,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}

	c.services = services
	return nil
}

// initWorkers initializes and starts all background workers using providers.
func (c *Container) initWorkers() error {
	workers, err := ProvideWorkers(c.templates, &c.config.Workflow, c.logger)
	if err != nil {
		return err
	}
	c.workers = workers

	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}

	return nil
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Templates returns the template store bundle.
func (c *Container) Templates() *TemplateBundle {
	return c.templates
}

// Metrics returns the prometheus collectors, nil when disabled.
func (c *Container) Metrics() *metrics.Metrics {
	return c.metrics
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Engine returns the workflow engine components.
func (c *Container) Engine() *EngineBundle {
	return c.engine
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// KeyValueLogger satisfies the Logger interfaces of the application and interface layers
type KeyValueLogger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// NewLoggerAdapter exposes a zap logger as a KeyValueLogger
func NewLoggerAdapter(logger *zap.Logger) KeyValueLogger {
	return &zapLoggerAdapter{logger: logger}
}

// zapLoggerAdapter adapts zap.Logger to the application Logger interfaces.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	a.logger.Warn(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, ok := keysAndValues[i+1].(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
