package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"

	"github.com/glsync/glsync/internal/config"
	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/queue"
	"github.com/glsync/glsync/internal/store/postgres"
	"github.com/glsync/glsync/internal/sync/entities"
)

// Option configures the database backed factories.
type Option func(*factoryOptions)

type factoryOptions struct {
	tracerProvider trace.TracerProvider
}

// WithTracerProvider sets the OpenTelemetry tracer provider for the document
// stores. If not set, tracing will be disabled (no-op).
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *factoryOptions) {
		o.tracerProvider = tp
	}
}

func (o *factoryOptions) tracer(name string) trace.Tracer {
	if o.tracerProvider == nil {
		return nil
	}
	return o.tracerProvider.Tracer(name)
}

func newFactoryOptions(opts []Option) *factoryOptions {
	o := &factoryOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// DatabaseFactory creates PostgreSQL backed stores sharing one connection pool.
// The schema must have been migrated with `glsync migrate up`.
type DatabaseFactory struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

var _ Factory = (*DatabaseFactory)(nil)

// NewDatabaseFactory creates a new database-backed storage factory.
// It establishes a connection pool to the configured PostgreSQL database.
func NewDatabaseFactory(ctx context.Context, cfg *config.DatabaseConfig, opts ...Option) (*DatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required for database storage type")
	}

	slog.Info("Creating database-backed storage factory", "host", cfg.Host, "database", cfg.Database)

	pool, err := buildDatabaseConnectionPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	o := newFactoryOptions(opts)
	return &DatabaseFactory{pool: pool, tracer: o.tracer(postgres.TracerName)}, nil
}

// CreateStores creates the document stores, all in the entity_documents table.
func (d *DatabaseFactory) CreateStores(_ context.Context) (entities.Stores, error) {
	var opts []postgres.Option
	if d.tracer != nil {
		opts = append(opts, postgres.WithTracer(d.tracer))
		slog.Debug("Document store tracing enabled")
	}

	return entities.Stores{
		Users:         postgres.New[entity.UserDocument](d.pool, entity.TypeUsers, opts...),
		Projects:      postgres.New[entity.ProjectDocument](d.pool, entity.TypeProjects, opts...),
		Issues:        postgres.New[entity.IssueDocument](d.pool, entity.TypeIssues, opts...),
		MergeRequests: postgres.New[entity.MergeRequestDocument](d.pool, entity.TypeMergeRequests, opts...),
		Pipelines:     postgres.New[entity.PipelineDocument](d.pool, entity.TypePipelines, opts...),
		Milestones:    postgres.New[entity.MilestoneDocument](d.pool, entity.TypeMilestones, opts...),
		Namespaces:    postgres.New[entity.NamespaceDocument](d.pool, entity.TypeNamespaces, opts...),
	}, nil
}

// CreateJobStore creates a job store on the sync_jobs and sync_repeatables tables.
func (d *DatabaseFactory) CreateJobStore(_ context.Context) (queue.JobStore, error) {
	return queue.NewPostgresJobStore(d.pool), nil
}

// Cleanup releases resources held by the database factory.
// This closes the database connection pool and any active connections.
func (d *DatabaseFactory) Cleanup() {
	if d.pool != nil {
		slog.Info("Closing database connection pool")
		d.pool.Close()
	}
}

// buildDatabaseConnectionPool creates a database connection pool with proper configuration.
func buildDatabaseConnectionPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	connStr, err := cfg.GetConnectionString()
	if err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database connection string: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	}
	if cfg.ConnMaxLifetime != "" {
		lifetime, err := time.ParseDuration(cfg.ConnMaxLifetime)
		if err != nil {
			return nil, fmt.Errorf("failed to parse connMaxLifetime: %w", err)
		}
		poolConfig.MaxConnLifetime = lifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	slog.Info("Database connection pool created successfully")
	return pool, nil
}
