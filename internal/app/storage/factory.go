// Package storage provides factory functions for creating storage-dependent components.
// A factory creates the document stores of every entity type and the job
// store of the queues from one backend, and owns the backend's connections.
package storage

import (
	"context"
	"fmt"

	"github.com/glsync/glsync/internal/config"
	"github.com/glsync/glsync/internal/queue"
	"github.com/glsync/glsync/internal/sync/entities"
)

// Factory creates storage-dependent components as a family.
//
// It also manages the lifecycle of storage resources (e.g., database connections).
type Factory interface {
	// CreateStores creates the document store of every entity type.
	CreateStores(ctx context.Context) (entities.Stores, error)

	// CreateJobStore creates the store holding queued jobs and repeatable
	// descriptors.
	CreateJobStore(ctx context.Context) (queue.JobStore, error)

	// Cleanup releases any resources held by this factory.
	// Should be called when the application shuts down.
	Cleanup()
}

// NewStorageFactory creates a storage factory based on the configured storage type.
func NewStorageFactory(ctx context.Context, cfg *config.Config, opts ...Option) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	switch cfg.Storage.GetType() {
	case config.StorageTypeMemory:
		return NewMemoryFactory(), nil
	case config.StorageTypeDatabase:
		return NewDatabaseFactory(ctx, cfg.Storage.Database, opts...)
	case config.StorageTypeMongoDB:
		return NewMongoDBFactory(ctx, cfg.Storage.MongoDB, opts...)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Storage.GetType())
	}
}
