package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/garyjia/tradeflow/internal/config"
	"github.com/garyjia/tradeflow/internal/container"
	"github.com/garyjia/tradeflow/internal/infrastructure/importer"
	httpiface "github.com/garyjia/tradeflow/internal/interfaces/http"
	"github.com/garyjia/tradeflow/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting trade-finance workflow service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port),
		zap.String("business_centre", cfg.Workflow.BusinessCentre))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}
	if err := c.Start(ctx); err != nil {
		logger.Fatal("Failed to start container", zap.Error(err))
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Container shutdown error", zap.Error(err))
		}
	}()

	opts := []httpiface.ServerOption{
		httpiface.WithHealthChecker(c.HealthReport),
		httpiface.WithTemplateLoader(httpiface.FormatYAML, importer.NewYAMLLoader()),
		httpiface.WithTemplateLoader(httpiface.FormatXLSX, importer.NewExcelLoader(logger)),
	}
	if m := c.Metrics(); m != nil {
		opts = append(opts, httpiface.WithMetricsHandler(m.Handler()))
	}

	server := httpiface.NewServer(
		httpiface.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		c.Services().Workflow,
		c.Services().Admin,
		container.NewLoggerAdapter(logger),
		opts...,
	)

	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server stopped with error", zap.Error(err))
		return
	}

	logger.Info("Server exited successfully")
}
