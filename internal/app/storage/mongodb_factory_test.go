package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/glsync/glsync/internal/config"
	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/queue"
	"github.com/glsync/glsync/internal/store"
)

func TestNewMongoDBFactory(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skip("skipping mongodb test in short mode")
	}

	ctx := context.Background()
	container, err := tcmongo.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() { tc.CleanupContainer(t, container) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	f, err := NewMongoDBFactory(ctx, &config.MongoDBConfig{URI: uri, Database: "glsync_factory"},
		WithTracerProvider(tp))
	require.NoError(t, err)
	t.Cleanup(f.Cleanup)

	stores, err := f.CreateStores(ctx)
	require.NoError(t, err)

	// Index creation is idempotent.
	_, err = f.CreateStores(ctx)
	require.NoError(t, err)

	_, created, err := stores.Users.Upsert(ctx, &store.Record[entity.UserDocument]{
		SourceID: 5,
		Entity:   entity.UserDocument{Username: "ada"},
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, exporter.GetSpans())

	jobs, err := f.CreateJobStore(ctx)
	require.NoError(t, err)
	assert.IsType(t, &queue.MemoryJobStore{}, jobs)
}
