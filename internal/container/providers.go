package container

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/tradeflow/internal/application/dispatcher"
	"github.com/garyjia/tradeflow/internal/application/lifecycle"
	"github.com/garyjia/tradeflow/internal/application/permission"
	"github.com/garyjia/tradeflow/internal/application/port"
	"github.com/garyjia/tradeflow/internal/application/resolver"
	"github.com/garyjia/tradeflow/internal/application/service"
	"github.com/garyjia/tradeflow/internal/domain/event"
	"github.com/garyjia/tradeflow/internal/infrastructure/cache"
	"github.com/garyjia/tradeflow/internal/infrastructure/metrics"
	"github.com/garyjia/tradeflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/tradeflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/tradeflow/internal/infrastructure/worker"
	"github.com/garyjia/tradeflow/migrations"
	"github.com/garyjia/tradeflow/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// TemplateBundle holds the template store seen by the engine and, when
// caching is enabled, the cache behind it.
type TemplateBundle struct {
	Store port.TemplateStore
	Cache *cache.TemplateCache
}

// EngineBundle holds the workflow engine components.
type EngineBundle struct {
	Registry *permission.Registry
	Resolver *resolver.Resolver
	Driver   *lifecycle.Driver
}

// ProvideDatabase opens the database and applies pending migrations.
// Returns DatabaseBundle containing sql.DB and TransactionManager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db, logger)
	if cfg.MigrationsDir != "" {
		err = migrator.RunMigrations(cfg.MigrationsDir)
	} else {
		err = migrator.RunMigrationsFS(migrations.FS)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
// Returns RepositoryBundle containing all repository implementations.
func ProvideRepositories(sqlDB *sql.DB, txManager port.TransactionManager, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if txManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Template:    repository.NewTemplateRepository(sqlDB, logger),
		Stage:       repository.NewStageRepository(sqlDB, logger),
		Permission:  repository.NewPermissionRepository(sqlDB, txManager, logger),
		Transaction: repository.NewTransactionRepository(sqlDB, logger),
		History:     repository.NewHistoryRepository(sqlDB, logger),
	}, nil
}

// ProvideTemplateStore builds the engine's template store, wrapped in an
// expiring cache when cfg.CacheTTL is positive.
func ProvideTemplateStore(repos *RepositoryBundle, cfg *WorkflowConfig, logger *zap.Logger) (*TemplateBundle, error) {
	if repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("workflow config is required")
	}

	store := repository.NewTemplateStore(repos.Template, repos.Stage)
	if cfg.CacheTTL <= 0 {
		return &TemplateBundle{Store: store}, nil
	}

	tc := cache.NewTemplateCache(store, cfg.CacheTTL, logger)
	return &TemplateBundle{Store: tc, Cache: tc}, nil
}

// ProvideMetrics creates the prometheus collectors, or nil when disabled.
func ProvideMetrics(cfg *MetricsConfig) *metrics.Metrics {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return metrics.New()
}

// ProvideDispatcher creates the event dispatcher. With metrics, every
// handler run is observed and every lifecycle event is counted.
func ProvideDispatcher(logger *zap.Logger, m *metrics.Metrics) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := []dispatcher.Option{
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger}),
	}
	if m != nil {
		opts = append(opts, dispatcher.WithObserver(m.ObserveHandler))
	}
	d := dispatcher.NewDispatcher(opts...)

	if m != nil {
		record := func(ctx context.Context, evt *event.Event) error {
			m.RecordEvent(evt)
			return nil
		}
		for _, t := range []event.Type{
			event.TypeTransactionCreated,
			event.TypeStatusChanged,
			event.TypeTransactionRejected,
			event.TypeTransactionCompleted,
			event.TypeTransactionDiscarded,
			event.TypePermissionsLoaded,
			event.TypeTemplatesImported,
		} {
			d.SubscribeNamed(t, "metrics", record)
		}
	}

	d.SubscribeNamed(event.TypeTransactionCompleted, "completion_log", createCompletionLogger(logger))
	return d, nil
}

// EngineDeps holds dependencies required for creating the workflow engine.
type EngineDeps struct {
	Repos      *RepositoryBundle
	Templates  port.TemplateStore
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Metrics    *metrics.Metrics
	Config     *WorkflowConfig
	Logger     *zap.Logger
}

// ProvideEngine creates the permission registry, stage resolver and lifecycle driver.
func ProvideEngine(deps *EngineDeps) (*EngineBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("engine dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Templates == nil {
		return nil, fmt.Errorf("template store is required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("workflow config is required")
	}

	logger := &zapLoggerAdapter{logger: deps.Logger}

	resolverOpts := []resolver.Option{resolver.WithLegacyRecovery(deps.Config.LegacyRecovery)}
	if deps.Metrics != nil {
		resolverOpts = append(resolverOpts, resolver.WithObserver(deps.Metrics.ObserveResolution))
	}

	driverOpts := []lifecycle.Option{lifecycle.WithDispatcher(deps.Dispatcher)}
	if len(deps.Config.IssuanceEvents) > 0 {
		driverOpts = append(driverOpts, lifecycle.WithIssuanceEvents(deps.Config.IssuanceEvents...))
	}

	return &EngineBundle{
		Registry: permission.NewRegistry(deps.Repos.Permission, logger, permission.WithDispatcher(deps.Dispatcher)),
		Resolver: resolver.NewResolver(deps.Templates, logger, resolverOpts...),
		Driver: lifecycle.NewDriver(
			deps.Repos.Transaction,
			deps.Repos.History,
			deps.TxManager,
			logger,
			driverOpts...,
		),
	}, nil
}

// ServiceDeps holds dependencies required for creating application services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	Templates  *TemplateBundle
	Engine     *EngineBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Metrics    *metrics.Metrics
	Config     *WorkflowConfig
	Logger     *zap.Logger
}

// ProvideServices creates all application services.
// Returns ServiceBundle containing all service implementations.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Templates == nil {
		return nil, fmt.Errorf("template store is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("workflow config is required")
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}

	workflowOpts := []service.Option{
		service.WithDefaultTriggerType(deps.Config.DefaultTriggerType),
		service.WithDefaultBusinessCentre(deps.Config.BusinessCentre),
	}
	if deps.Metrics != nil {
		workflowOpts = append(workflowOpts, service.WithSessionGauge(deps.Metrics.SetOpenSessions))
	}

	adminOpts := []service.AdminOption{service.WithAdminDispatcher(deps.Dispatcher)}
	if deps.Templates.Cache != nil {
		adminOpts = append(adminOpts, service.WithTemplatesChanged(deps.Templates.Cache.Invalidate))
	}

	return &ServiceBundle{
		Workflow: service.NewWorkflowService(
			deps.Templates.Store,
			deps.Repos.Transaction,
			deps.Engine.Registry,
			deps.Engine.Resolver,
			deps.Engine.Driver,
			serviceLogger,
			workflowOpts...,
		),
		Admin: service.NewAdminService(
			deps.Repos.Permission,
			deps.Engine.Registry,
			deps.Repos.Template,
			deps.Repos.Stage,
			deps.Repos.Transaction,
			deps.Repos.History,
			deps.TxManager,
			serviceLogger,
			adminOpts...,
		),
	}, nil
}

// ProvideWorkers creates and registers all background workers.
// Returns *worker.WorkerManager with all workers registered but not started.
func ProvideWorkers(templates *TemplateBundle, cfg *WorkflowConfig, logger *zap.Logger) (*worker.WorkerManager, error) {
	if templates == nil {
		return nil, fmt.Errorf("template store is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("workflow config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewWorkerManager(logger)
	if templates.Cache != nil {
		manager.Register(worker.NewCacheJanitor(templates.Cache, cfg.JanitorInterval, logger))
	}
	return manager, nil
}

// createCompletionLogger logs every transaction that reached a terminal status
func createCompletionLogger(logger *zap.Logger) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		if evt == nil {
			return fmt.Errorf("event cannot be nil")
		}
		logger.Info("Transaction completed",
			zap.String("event_id", evt.ID),
			zap.String("transaction_ref", evt.TransactionRef),
			zap.String("status", evt.GetPayloadString(event.KeyNewStatus)),
		)
		return nil
	}
}
