package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/tradeflow/internal/domain/entity"
)

// EnvPrefix prefixes every environment override, e.g. TRADEFLOW_SERVER_PORT
const EnvPrefix = "TRADEFLOW"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration.
// An empty MigrationsDir applies the schema embedded in the binary.
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// WorkflowConfig holds stage resolution and lifecycle settings
type WorkflowConfig struct {
	BusinessCentre     string        `mapstructure:"business_centre"`
	DefaultTriggerType string        `mapstructure:"default_trigger_type"`
	CacheTTL           time.Duration `mapstructure:"cache_ttl"`
	JanitorInterval    time.Duration `mapstructure:"janitor_interval"`
	LegacyRecovery     bool          `mapstructure:"legacy_recovery"`
	IssuanceEvents     []string      `mapstructure:"issuance_events"`
}

// MetricsConfig holds prometheus exposition settings
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads an optional .env file, then the YAML file at configPath (if
// any), then TRADEFLOW_* environment overrides, and validates the result.
func Load(configPath string) (*Config, error) {
	return LoadWithEnv(configPath, ".env")
}

// LoadWithEnv is Load with an explicit .env path; an empty path skips it
func LoadWithEnv(configPath, envFile string) (*Config, error) {
	if envFile != "" {
		if err := gotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key, which also makes each one reachable
// through AutomaticEnv during Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("database.path", "data/tradeflow.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.migrations_dir", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("workflow.business_centre", entity.BusinessAppOrchestrator)
	v.SetDefault("workflow.default_trigger_type", entity.TriggerTypeManual)
	v.SetDefault("workflow.cache_ttl", 5*time.Minute)
	v.SetDefault("workflow.janitor_interval", time.Minute)
	v.SetDefault("workflow.legacy_recovery", true)
	v.SetDefault("workflow.issuance_events", []string{"ISS"})

	v.SetDefault("metrics.enabled", true)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logger.level %q is not one of debug, info, warn, error", c.Logger.Level)
	}
	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}

	switch c.Workflow.BusinessCentre {
	case entity.BusinessAppClient, entity.BusinessAppOrchestrator, entity.BusinessAppBank:
	default:
		return fmt.Errorf("workflow.business_centre %q is not a known business application", c.Workflow.BusinessCentre)
	}
	if c.Workflow.DefaultTriggerType == "" {
		return fmt.Errorf("workflow.default_trigger_type is required")
	}
	if c.Workflow.CacheTTL < 0 {
		return fmt.Errorf("workflow.cache_ttl must not be negative")
	}
	if c.Workflow.CacheTTL > 0 && c.Workflow.JanitorInterval <= 0 {
		return fmt.Errorf("workflow.janitor_interval must be positive when the template cache is enabled")
	}
	if len(c.Workflow.IssuanceEvents) == 0 {
		return fmt.Errorf("workflow.issuance_events needs at least one event code")
	}

	return nil
}
