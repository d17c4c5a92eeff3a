// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/tradeflow/internal/application/port"
	"github.com/garyjia/tradeflow/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// HealthChecker reports the state of each component, keyed by component
// name. A healthy component reports "ok".
type HealthChecker func(ctx context.Context) map[string]string

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// ServerOption configures optional server collaborators
type ServerOption func(*Server)

// WithHealthChecker sets the component check behind GET /health
func WithHealthChecker(check HealthChecker) ServerOption {
	return func(s *Server) {
		s.health = check
	}
}

// WithMetricsHandler exposes handler on GET /metrics
func WithMetricsHandler(handler http.Handler) ServerOption {
	return func(s *Server) {
		s.metrics = handler
	}
}

// WithTemplateLoader registers a template import format, e.g. "yaml" or "xlsx"
func WithTemplateLoader(format string, loader port.TemplateLoader) ServerOption {
	return func(s *Server) {
		s.loaders[format] = loader
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	workflow   service.WorkflowService
	admin      service.AdminService
	health     HealthChecker
	metrics    http.Handler
	loaders    map[string]port.TemplateLoader
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	workflowService service.WorkflowService,
	adminService service.AdminService,
	logger Logger,
	opts ...ServerOption,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config:   config,
		router:   router,
		workflow: workflowService,
		admin:    adminService,
		loaders:  make(map[string]port.TemplateLoader),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(server)
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.workflow, s.admin, s.health, s.loaders, s.logger)

	s.router.GET("/health", handlers.HealthCheck)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics))
	}

	api := s.router.Group("/api")
	{
		api.POST("/resolve", handlers.Resolve)
		api.GET("/stages/:id/fields", handlers.StageFields)

		api.POST("/sessions", handlers.OpenSession)
		api.GET("/sessions/:id", handlers.GetSession)
		api.POST("/sessions/:id/submit", handlers.SubmitPane)
		api.POST("/sessions/:id/reject", handlers.RejectSession)
		api.POST("/sessions/:id/discard", handlers.DiscardSession)
		api.DELETE("/sessions/:id", handlers.CloseSession)
	}

	admin := api.Group("/admin")
	{
		admin.PUT("/permissions/:user_id", handlers.UpsertPermissions)
		admin.GET("/permissions/:user_id", handlers.GetPermissions)
		admin.POST("/templates/import", handlers.ImportTemplates)
		admin.GET("/templates", handlers.ListTemplates)
		admin.GET("/transactions", handlers.ListTransactions)
		admin.GET("/transactions/:ref", handlers.GetTransaction)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
