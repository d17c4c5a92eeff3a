// Package container provides dependency injection and lifecycle management
// for the trade-finance workflow service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/tradeflow/internal/domain/entity"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Server configuration
	Server ServerConfig

	// Workflow engine configuration
	Workflow WorkflowConfig

	// Metrics configuration
	Metrics MetricsConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// MigrationsDir overrides the embedded schema when set
	MigrationsDir string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind to
	Host string

	// Port to listen on
	Port int

	// ReadTimeout for HTTP server
	ReadTimeout time.Duration

	// WriteTimeout for HTTP server
	WriteTimeout time.Duration
}

// WorkflowConfig holds resolver, lifecycle and template cache settings.
type WorkflowConfig struct {
	// BusinessCentre is the business application sessions run under by default
	BusinessCentre string

	// DefaultTriggerType is used when a request names no trigger type
	DefaultTriggerType string

	// CacheTTL is the template cache expiry; zero disables the cache
	CacheTTL time.Duration

	// JanitorInterval is how often expired cache entries are purged
	JanitorInterval time.Duration

	// LegacyRecovery lets legacy statuses fall back to the first accessible stage
	LegacyRecovery bool

	// IssuanceEvents are the event codes whose final approval writes "issued"
	IssuanceEvents []string
}

// MetricsConfig holds prometheus settings.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/tradeflow.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Workflow: WorkflowConfig{
			BusinessCentre:     entity.BusinessAppOrchestrator,
			DefaultTriggerType: entity.TriggerTypeManual,
			CacheTTL:           5 * time.Minute,
			JanitorInterval:    time.Minute,
			LegacyRecovery:     true,
			IssuanceEvents:     []string{"ISS"},
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Workflow.DefaultTriggerType == "" {
		return fmt.Errorf("workflow.default_trigger_type is required")
	}
	if c.Workflow.CacheTTL > 0 && c.Workflow.JanitorInterval <= 0 {
		return fmt.Errorf("workflow.janitor_interval must be positive when the template cache is enabled")
	}
	return nil
}
