// Package main provides tradeflowctl, the operator CLI of the workflow
// service: schema migration, template import and offline stage resolution.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/tradeflow/internal/config"
	"github.com/garyjia/tradeflow/pkg/utils"
)

const (
	Version = "1.0.0"
	appName = "tradeflowctl"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	configPath string
	dbPath     string
	verbose    bool
}

func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.dbPath != "" {
		cfg.Database.Path = o.dbPath
	}
	return cfg, nil
}

func (o *globalOptions) logger() (*zap.Logger, error) {
	return utils.NewCLILogger(o.verbose)
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Operate the trade-finance workflow service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "Override database.path")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")

	cmd.AddCommand(
		migrateCmd(opts),
		importCmd(opts),
		resolveCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)

	return cmd
}
