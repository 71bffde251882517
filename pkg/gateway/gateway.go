// Package gateway assembles the CI matrix engine into an embeddable server.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lei/matrix-ci/internal/action"
	"github.com/lei/matrix-ci/internal/action/localexec"
	"github.com/lei/matrix-ci/internal/api"
	"github.com/lei/matrix-ci/internal/config"
	"github.com/lei/matrix-ci/internal/engine"
	"github.com/lei/matrix-ci/internal/models"
	"github.com/lei/matrix-ci/internal/report"
	"github.com/lei/matrix-ci/internal/service"
	"github.com/lei/matrix-ci/internal/store"
	"github.com/lei/matrix-ci/pkg/logger"
)

// Gateway represents a matrix engine instance that can be embedded in applications
type Gateway struct {
	config  *Config
	service *service.Service
	router  http.Handler
	server  *http.Server
	logger  *logger.Logger
}

// Config holds the configuration for the Gateway
type Config struct {
	// Server configuration
	Server ServerConfig

	// Authentication configuration
	Auth AuthConfig

	// Engine configuration
	Engine EngineConfig

	// Pipeline is the validated pipeline definition to execute
	Pipeline *models.Pipeline

	// Invoker carries out step actions. When nil, the local shell-backed
	// invoker is used.
	Invoker action.Invoker

	// Sink receives finished verdicts. When nil, verdicts are written to
	// the log.
	Sink report.Sink

	// Logger configuration
	Logging LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	// APIKeys is a list of API keys for authentication
	APIKeys []APIKey
}

// APIKey represents an API key for authentication
type APIKey struct {
	Name string
	Key  string
}

// EngineConfig holds execution configuration
type EngineConfig struct {
	// MaxParallel bounds how many matrix jobs run concurrently
	MaxParallel int

	// StepTimeout bounds each local action invocation
	StepTimeout time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

// New creates a new Gateway instance with the provided configuration
func New(cfg *Config) (*Gateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("pipeline definition required")
	}

	// Initialize logger
	appLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	// The whole definition is validated up front: a ConfigError here means
	// no run is ever dispatched
	if err := config.ValidatePipeline(cfg.Pipeline); err != nil {
		return nil, err
	}

	invoker := cfg.Invoker
	if invoker == nil {
		invoker = localexec.New(localexec.Config{StepTimeout: cfg.Engine.StepTimeout}, appLogger)
	}

	sink := cfg.Sink
	if sink == nil {
		sink = report.NewLogSink(appLogger)
	}

	// Assemble the engine
	gate := engine.NewGatePolicy(cfg.Pipeline.Steps)
	executor := engine.NewExecutor(invoker, gate, appLogger)
	coordinator := engine.NewCoordinator(executor, cfg.Engine.MaxParallel, appLogger)

	// Initialize service layer
	svc := service.NewService(cfg.Pipeline, coordinator, store.New(), sink, appLogger)

	// Initialize API layer
	handlers := api.NewHandlers(svc)

	configAPIKeys := make([]config.APIKey, len(cfg.Auth.APIKeys))
	for i, key := range cfg.Auth.APIKeys {
		configAPIKeys[i] = config.APIKey{
			Name: key.Name,
			Key:  key.Key,
		}
	}
	authMiddleware := api.NewAuthMiddleware(configAPIKeys)
	loggingMiddleware := api.NewLoggingMiddleware(appLogger)
	router := api.NewRouter(handlers, authMiddleware, loggingMiddleware)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	appLogger.Info("initialized matrix engine",
		"pipeline", cfg.Pipeline.Name,
		"dimensions", len(cfg.Pipeline.Matrix.Dimensions),
		"steps", len(cfg.Pipeline.Steps))

	return &Gateway{
		config:  cfg,
		service: svc,
		router:  router,
		server:  srv,
		logger:  appLogger,
	}, nil
}

// Start starts the HTTP server
// This is a blocking call that will run until the context is canceled or an error occurs
func (g *Gateway) Start(ctx context.Context) error {
	serverErrors := make(chan error, 1)

	// Start server in goroutine
	go func() {
		g.logger.Info("starting http server", "port", g.config.Server.Port)
		serverErrors <- g.server.ListenAndServe()
	}()

	// Wait for context cancellation or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		g.logger.Info("shutdown signal received")

		// Graceful shutdown with 30s timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := g.server.Shutdown(shutdownCtx); err != nil {
			g.server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		g.logger.Info("server stopped gracefully")
		return nil
	}
}

// Handler returns the http.Handler for the gateway
// Use this if you want to integrate the gateway into an existing HTTP server
func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Service returns the underlying service layer
// Use this for direct programmatic access to gateway functionality
func (g *Gateway) Service() *service.Service {
	return g.service
}

// NewFromEnv creates a Gateway instance from a server config file and a
// pipeline definition file
func NewFromEnv(configFile, pipelineFile string) (*Gateway, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	pipeline, err := config.LoadPipeline(pipelineFile)
	if err != nil {
		return nil, fmt.Errorf("load pipeline: %w", err)
	}

	gwAPIKeys := make([]APIKey, len(cfg.Auth.APIKeys))
	for i, key := range cfg.Auth.APIKeys {
		gwAPIKeys[i] = APIKey{
			Name: key.Name,
			Key:  key.Key,
		}
	}

	gwConfig := &Config{
		Server: ServerConfig{
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		Auth: AuthConfig{
			APIKeys: gwAPIKeys,
		},
		Engine: EngineConfig{
			MaxParallel: cfg.Engine.MaxParallel,
			StepTimeout: cfg.Engine.StepTimeout,
		},
		Pipeline: pipeline,
		Logging: LoggingConfig{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		},
	}

	return New(gwConfig)
}
