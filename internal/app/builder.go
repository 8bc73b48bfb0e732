package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/glsync/glsync/internal/api"
	"github.com/glsync/glsync/internal/app/storage"
	"github.com/glsync/glsync/internal/config"
	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/gitlab"
	"github.com/glsync/glsync/internal/jobs"
	"github.com/glsync/glsync/internal/queue"
	"github.com/glsync/glsync/internal/sync"
	"github.com/glsync/glsync/internal/telemetry"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// AppOption is a function that configures the app builder
//
//nolint:revive // This name is fine
type AppOption func(*appConfig) error

// appConfig collects the inputs of NewApp. It supports dependency injection
// for testing while providing sensible defaults for production.
type appConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	storageFactory storage.Factory
	querier        gitlab.Querier
	runners        []jobs.Runner

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	logger         *slog.Logger
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsHandler http.Handler
}

func baseConfig(opts ...AppOption) (*appConfig, error) {
	cfg := &appConfig{
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.address == "" {
		cfg.address = cfg.config.Server.GetAddress()
	}

	return cfg, nil
}

// NewApp builds the application: storage, upstream client, sync drivers, job
// manager and the HTTP control surface.
func NewApp(ctx context.Context, opts ...AppOption) (*App, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	if cfg.storageFactory == nil {
		var factoryOpts []storage.Option
		if cfg.tracerProvider != nil {
			factoryOpts = append(factoryOpts, storage.WithTracerProvider(cfg.tracerProvider))
		}
		cfg.storageFactory, err = storage.NewStorageFactory(ctx, cfg.config, factoryOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
	}

	// Ensure cleanup happens on error
	var cleanupNeeded = true
	defer func() {
		if cleanupNeeded {
			cfg.storageFactory.Cleanup()
		}
	}()

	manager, err := buildJobManager(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build job manager: %w", err)
	}

	httpServer, err := buildHTTPServer(cfg, manager)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)

	// Cleanup is now handled by the app
	cleanupNeeded = false

	return &App{
		config:     cfg.config,
		manager:    manager,
		httpServer: httpServer,
		storage:    cfg.storageFactory,
		logger:     cfg.logger,
		ctx:        appCtx,
		cancelFunc: cancel,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) AppOption {
	return func(cfg *appConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address, overriding server.address
func WithAddress(addr string) AppOption {
	return func(cfg *appConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares, replacing the defaults
func WithMiddlewares(mw ...func(http.Handler) http.Handler) AppOption {
	return func(cfg *appConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory (for testing)
func WithStorageFactory(f storage.Factory) AppOption {
	return func(cfg *appConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithQuerier allows injecting the upstream transport (for testing). No
// token is needed when it is set.
func WithQuerier(q gitlab.Querier) AppOption {
	return func(cfg *appConfig) error {
		cfg.querier = q
		return nil
	}
}

// WithRunners replaces the sync drivers (for testing)
func WithRunners(runners ...jobs.Runner) AppOption {
	return func(cfg *appConfig) error {
		cfg.runners = runners
		return nil
	}
}

// WithLogger sets the logger of every component
func WithLogger(l *slog.Logger) AppOption {
	return func(cfg *appConfig) error {
		if l == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		cfg.logger = l
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for sync, queue and HTTP metrics
func WithMeterProvider(mp metric.MeterProvider) AppOption {
	return func(cfg *appConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider
func WithTracerProvider(tp trace.TracerProvider) AppOption {
	return func(cfg *appConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsHandler exposes a Prometheus scrape handler at /metrics
func WithMetricsHandler(h http.Handler) AppOption {
	return func(cfg *appConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

// buildJobManager builds the sync drivers and the job manager owning their queues
func buildJobManager(ctx context.Context, b *appConfig) (*jobs.Manager, error) {
	b.logger.Info("Initializing job components")

	var (
		syncMetrics  *telemetry.SyncMetrics
		queueMetrics *telemetry.QueueMetrics
	)
	if b.meterProvider != nil {
		var err error
		if syncMetrics, err = telemetry.NewSyncMetrics(b.meterProvider); err != nil {
			return nil, fmt.Errorf("failed to create sync metrics: %w", err)
		}
		if queueMetrics, err = telemetry.NewQueueMetrics(b.meterProvider); err != nil {
			return nil, fmt.Errorf("failed to create queue metrics: %w", err)
		}
		b.logger.Info("Sync and queue metrics enabled")
	}

	runners := b.runners
	if runners == nil {
		stores, err := b.storageFactory.CreateStores(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create document stores: %w", err)
		}

		client, err := b.gitlabClient()
		if err != nil {
			return nil, fmt.Errorf("failed to create upstream client: %w", err)
		}

		syncOpts := []sync.Option{sync.WithLogger(b.logger), sync.WithMetrics(syncMetrics)}
		if b.tracerProvider != nil {
			syncOpts = append(syncOpts, sync.WithTracer(b.tracerProvider.Tracer(sync.TracerName)))
		}

		byType := NewRunners(b.config, client, stores, syncOpts...)
		for _, t := range entity.AllTypes() {
			runners = append(runners, byType[t])
		}
	}

	jobStore, err := b.storageFactory.CreateJobStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create job store: %w", err)
	}

	managerOpts := []jobs.ManagerOption{
		jobs.WithQueueConfig(queueConfig(b.config.Queue)),
		jobs.WithLogger(b.logger),
		jobs.WithMetrics(queueMetrics),
	}
	if b.tracerProvider != nil {
		managerOpts = append(managerOpts, jobs.WithTracer(b.tracerProvider.Tracer(queue.TracerName)))
	}
	for _, t := range entity.AllTypes() {
		job := b.config.Job(t)
		managerOpts = append(managerOpts, jobs.WithTypeSettings(t, jobs.TypeSettings{
			Every:    job.GetInterval(),
			Defaults: sync.Options{BatchSize: job.BatchSize, FullSync: job.FullSync},
		}))
	}

	b.logger.Info("Job components initialized successfully", "entity_types", len(runners))
	return jobs.NewManager(runners, jobStore, managerOpts...), nil
}

func (b *appConfig) gitlabClient() (*gitlab.Client, error) {
	if b.querier != nil {
		return gitlab.NewClientWithQuerier(b.querier, clientOptions(b.config, b.logger, b.tracerProvider)...), nil
	}
	return NewGitLabClient(b.config, b.logger, b.tracerProvider)
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(b *appConfig, manager *jobs.Manager) (*http.Server, error) {
	b.logger.Info("Initializing HTTP server")

	// Use default middlewares if not provided
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware(b.logger),
		}
	}

	// Metrics and tracing go first to capture every request
	if b.tracerProvider != nil {
		b.middlewares = append([]func(http.Handler) http.Handler{telemetry.TracingMiddleware(b.tracerProvider)}, b.middlewares...)
	}
	if b.meterProvider != nil {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		if metricsMiddleware != nil {
			b.middlewares = append([]func(http.Handler) http.Handler{metricsMiddleware}, b.middlewares...)
			b.logger.Info("HTTP metrics middleware enabled")
		}
	}

	router := api.NewServer(manager,
		api.WithMiddlewares(b.middlewares...),
		api.WithLogger(b.logger),
		api.WithMetricsHandler(b.metricsHandler),
	)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	b.logger.Info("HTTP server configured", "address", b.address)
	return server, nil
}
