package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/tradeflow/internal/application/port"
	"github.com/garyjia/tradeflow/internal/application/service"
	"github.com/garyjia/tradeflow/internal/container"
	"github.com/garyjia/tradeflow/internal/infrastructure/importer"
	"github.com/garyjia/tradeflow/migrations"
	"github.com/garyjia/tradeflow/pkg/database"
)

func migrateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger, err := opts.logger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := database.New(database.Config{
				Path:            cfg.Database.Path,
				MaxOpenConns:    cfg.Database.MaxOpenConns,
				MaxIdleConns:    cfg.Database.MaxIdleConns,
				ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			}, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			migrator := database.NewMigrator(db, logger)
			if cfg.Database.MigrationsDir != "" {
				err = migrator.RunMigrations(cfg.Database.MigrationsDir)
			} else {
				err = migrator.RunMigrationsFS(migrations.FS)
			}
			if err != nil {
				return err
			}

			versions, err := migrator.AppliedVersions()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database %s at schema versions %v\n", db.Path(), versions)
			return nil
		},
	}
}

func importCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml|file.xlsx>",
		Short: "Import workflow templates, replacing the templates of every pair the file names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger, err := opts.logger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			loader, err := loaderFor(args[0], logger)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return withContainer(cmd.Context(), cfg.ToContainerConfig(), logger, func(c *container.Container) error {
				result, err := c.Services().Admin.ImportTemplates(cmd.Context(), loader, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d templates (%d stages, %d fields)\n",
					result.Templates, result.Stages, result.Fields)
				if len(result.Deactivated) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "replaced: %s\n", strings.Join(result.Deactivated, ", "))
				}
				return nil
			})
		},
	}
}

// fixture is the document read by "resolve": the template import document
// plus one user's permission payload and the request to resolve.
type fixture struct {
	Templates   yaml.Node              `yaml:"templates"`
	Permissions map[string]interface{} `yaml:"permissions"`
	Request     fixtureRequest         `yaml:"request"`
}

type fixtureRequest struct {
	UserID      string `yaml:"user_id"`
	ProductCode string `yaml:"product_code"`
	EventCode   string `yaml:"event_code"`
	TriggerType string `yaml:"trigger_type"`
	Status      string `yaml:"status"`
}

func resolveCmd(opts *globalOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "resolve <fixture.yaml>",
		Short: "Resolve the next stage offline from a fixture of templates, permissions and a request",
		Long: `Resolve loads the fixture into a throwaway database and prints the
resolution as JSON. The fixture holds a "templates" list in the import
format, a "permissions" object in the permission RPC shape and a "request"
with user_id, product_code, event_code, trigger_type and status.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := opts.logger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var fx fixture
			if err := yaml.Unmarshal(raw, &fx); err != nil {
				return fmt.Errorf("failed to decode fixture: %w", err)
			}
			if cmd.Flags().Changed("status") {
				fx.Request.Status = status
			}
			templates, err := yaml.Marshal(map[string]*yaml.Node{"templates": &fx.Templates})
			if err != nil {
				return err
			}

			dir, err := os.MkdirTemp("", appName)
			if err != nil {
				return err
			}
			defer os.RemoveAll(dir)

			cfg := container.DefaultConfig()
			cfg.Database.Path = filepath.Join(dir, "resolve.db")
			cfg.Workflow.CacheTTL = 0
			cfg.Metrics.Enabled = false

			ctx := cmd.Context()
			return withContainer(ctx, cfg, logger, func(c *container.Container) error {
				admin := c.Services().Admin
				if _, err := admin.ImportTemplates(ctx, importer.NewYAMLLoader(), bytes.NewReader(templates)); err != nil {
					return err
				}
				if fx.Permissions == nil {
					fx.Permissions = map[string]interface{}{}
				}
				if _, err := admin.UpsertPermissions(ctx, fx.Request.UserID, fx.Permissions); err != nil {
					return err
				}

				res, err := c.Services().Workflow.Resolve(ctx, service.ResolveInput{
					UserID:      fx.Request.UserID,
					ProductCode: fx.Request.ProductCode,
					EventCode:   fx.Request.EventCode,
					TriggerType: fx.Request.TriggerType,
					Status:      fx.Request.Status,
				})
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Override the fixture request status")
	return cmd
}

func withContainer(ctx context.Context, cfg *container.Config, logger *zap.Logger, fn func(c *container.Container) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func loaderFor(path string, logger *zap.Logger) (port.TemplateLoader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return importer.NewYAMLLoader(), nil
	case ".xlsx":
		return importer.NewExcelLoader(logger), nil
	default:
		return nil, fmt.Errorf("unsupported template file %q: use .yaml, .yml or .xlsx", path)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
