package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/trace"

	"github.com/glsync/glsync/internal/config"
	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/queue"
	"github.com/glsync/glsync/internal/store/mongodb"
	"github.com/glsync/glsync/internal/sync/entities"
)

const mongoDisconnectTimeout = 10 * time.Second

// MongoDBFactory creates MongoDB backed document stores, one collection per
// entity type. Jobs are kept in memory.
type MongoDBFactory struct {
	client *mongo.Client
	db     *mongo.Database
	tracer trace.Tracer
	jobs   *queue.MemoryJobStore
}

var _ Factory = (*MongoDBFactory)(nil)

// NewMongoDBFactory connects to the configured MongoDB deployment.
func NewMongoDBFactory(ctx context.Context, cfg *config.MongoDBConfig, opts ...Option) (*MongoDBFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mongodb configuration is required for mongodb storage type")
	}

	slog.Info("Creating MongoDB-backed storage factory", "database", cfg.Database)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to reach mongodb: %w", err)
	}

	o := newFactoryOptions(opts)
	return &MongoDBFactory{
		client: client,
		db:     client.Database(cfg.Database),
		tracer: o.tracer(mongodb.TracerName),
		jobs:   queue.NewMemoryJobStore(),
	}, nil
}

// CreateStores creates the document stores and their unique sourceId indexes.
func (f *MongoDBFactory) CreateStores(ctx context.Context) (entities.Stores, error) {
	var opts []mongodb.Option
	if f.tracer != nil {
		opts = append(opts, mongodb.WithTracer(f.tracer))
	}

	users := mongodb.New[entity.UserDocument](f.db, entity.TypeUsers, opts...)
	projects := mongodb.New[entity.ProjectDocument](f.db, entity.TypeProjects, opts...)
	issues := mongodb.New[entity.IssueDocument](f.db, entity.TypeIssues, opts...)
	mergeRequests := mongodb.New[entity.MergeRequestDocument](f.db, entity.TypeMergeRequests, opts...)
	pipelines := mongodb.New[entity.PipelineDocument](f.db, entity.TypePipelines, opts...)
	milestones := mongodb.New[entity.MilestoneDocument](f.db, entity.TypeMilestones, opts...)
	namespaces := mongodb.New[entity.NamespaceDocument](f.db, entity.TypeNamespaces, opts...)

	err := errors.Join(
		users.EnsureIndexes(ctx),
		projects.EnsureIndexes(ctx),
		issues.EnsureIndexes(ctx),
		mergeRequests.EnsureIndexes(ctx),
		pipelines.EnsureIndexes(ctx),
		milestones.EnsureIndexes(ctx),
		namespaces.EnsureIndexes(ctx),
	)
	if err != nil {
		return entities.Stores{}, err
	}

	return entities.Stores{
		Users:         users,
		Projects:      projects,
		Issues:        issues,
		MergeRequests: mergeRequests,
		Pipelines:     pipelines,
		Milestones:    milestones,
		Namespaces:    namespaces,
	}, nil
}

// CreateJobStore returns an in-memory job store.
func (f *MongoDBFactory) CreateJobStore(_ context.Context) (queue.JobStore, error) {
	return f.jobs, nil
}

// Cleanup disconnects the client.
func (f *MongoDBFactory) Cleanup() {
	if f.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	defer cancel()
	slog.Info("Disconnecting from mongodb")
	if err := f.client.Disconnect(ctx); err != nil {
		slog.Warn("Failed to disconnect from mongodb", "error", err)
	}
}
