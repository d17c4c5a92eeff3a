package config

import (
	"github.com/garyjia/tradeflow/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
		Workflow: container.WorkflowConfig{
			BusinessCentre:     c.Workflow.BusinessCentre,
			DefaultTriggerType: c.Workflow.DefaultTriggerType,
			CacheTTL:           c.Workflow.CacheTTL,
			JanitorInterval:    c.Workflow.JanitorInterval,
			LegacyRecovery:     c.Workflow.LegacyRecovery,
			IssuanceEvents:     append([]string(nil), c.Workflow.IssuanceEvents...),
		},
		Metrics: container.MetricsConfig{
			Enabled: c.Metrics.Enabled,
		},
	}
}
