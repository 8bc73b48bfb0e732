package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/store"
)

func TestBuildUpdate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	stamp := now.Add(-time.Second)

	update := buildUpdate(&store.Record[entity.UserDocument]{
		SourceID: 3,
		Entity:   entity.UserDocument{Username: "root"},
		SyncTimestamps: map[entity.Category]time.Time{
			entity.CategoryCore:   stamp,
			entity.CategoryStatus: stamp,
		},
		LastSyncedAt: stamp,
	}, now)

	set, ok := update["$set"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, entity.UserDocument{Username: "root"}, set["entity"])
	assert.Equal(t, now, set["updatedAt"])
	assert.NotContains(t, set, "externallyManaged", "insert-only fields are never overwritten")

	onInsert, ok := update["$setOnInsert"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, false, onInsert["externallyManaged"])

	stamps, ok := update["$max"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, bson.M{
		"syncTimestamps.core":   stamp,
		"syncTimestamps.status": stamp,
	}, stamps)
}

func TestBuildUpdate_NoStamps(t *testing.T) {
	t.Parallel()

	update := buildUpdate(&store.Record[entity.UserDocument]{SourceID: 1}, time.Now())
	assert.NotContains(t, update, "$max")
}

func TestStore_Integration(t *testing.T) {
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

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	s := New[entity.MilestoneDocument](client.Database("glsync_test"), entity.TypeMilestones)
	require.NoError(t, s.EnsureIndexes(ctx))

	_, err = s.Get(ctx, 1)
	require.ErrorIs(t, err, store.ErrNotFound)

	t0 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	_, created, err := s.Upsert(ctx, &store.Record[entity.MilestoneDocument]{
		SourceID: 1,
		Entity:   entity.MilestoneDocument{Title: "v1"},
		SyncTimestamps: map[entity.Category]time.Time{
			entity.CategoryCore:  t0,
			entity.CategoryStats: t0,
		},
		LastSyncedAt: t0,
	})
	require.NoError(t, err)
	assert.True(t, created)

	rec, created, err := s.Upsert(ctx, &store.Record[entity.MilestoneDocument]{
		SourceID:       1,
		Entity:         entity.MilestoneDocument{Title: "v1.1"},
		SyncTimestamps: map[entity.Category]time.Time{entity.CategoryCore: t1},
		LastSyncedAt:   t1,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "v1.1", rec.Entity.Title)

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "v1.1", got.Entity.Title)
	assert.True(t, got.SyncTimestamps[entity.CategoryCore].Equal(t1))
	assert.True(t, got.SyncTimestamps[entity.CategoryStats].Equal(t0))
	assert.False(t, got.ExternallyManaged)
}
