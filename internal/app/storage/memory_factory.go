package storage

import (
	"context"

	"github.com/glsync/glsync/internal/queue"
	"github.com/glsync/glsync/internal/sync/entities"
)

// MemoryFactory keeps documents and jobs in process memory. Everything is
// lost on restart.
type MemoryFactory struct {
	stores entities.Stores
	jobs   *queue.MemoryJobStore
}

var _ Factory = (*MemoryFactory)(nil)

// NewMemoryFactory returns a factory with empty stores.
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{
		stores: entities.MemoryStores(),
		jobs:   queue.NewMemoryJobStore(),
	}
}

// CreateStores returns the same stores on every call.
func (m *MemoryFactory) CreateStores(_ context.Context) (entities.Stores, error) {
	return m.stores, nil
}

// CreateJobStore returns the same job store on every call.
func (m *MemoryFactory) CreateJobStore(_ context.Context) (queue.JobStore, error) {
	return m.jobs, nil
}

// Cleanup is a no-op.
func (*MemoryFactory) Cleanup() {}
