package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glsync/glsync/internal/entity"
)

type testDoc struct {
	Title string
}

func TestMemoryStore_GetMissing(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore[testDoc]()
	_, err := s.Get(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_UpsertCreatesThenUpdates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore[testDoc]()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	rec, created, err := s.Upsert(ctx, &Record[testDoc]{
		SourceID: 101,
		Entity:   testDoc{Title: "first"},
		SyncTimestamps: map[entity.Category]time.Time{
			entity.CategoryCore:   t0,
			entity.CategoryPeople: t0,
			entity.CategoryLinks:  t0,
		},
		LastSyncedAt: t0,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "first", rec.Entity.Title)
	createdAt := rec.CreatedAt

	rec, created, err = s.Upsert(ctx, &Record[testDoc]{
		SourceID: 101,
		Entity:   testDoc{Title: "second"},
		SyncTimestamps: map[entity.Category]time.Time{
			entity.CategoryCore:   t1,
			entity.CategoryPeople: t1,
		},
		LastSyncedAt: t1,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "second", rec.Entity.Title)
	assert.Equal(t, createdAt, rec.CreatedAt)
	assert.Equal(t, t1, rec.LastSyncedAt)
	assert.Equal(t, t1, rec.SyncTimestamps[entity.CategoryCore])
	assert.Equal(t, t1, rec.SyncTimestamps[entity.CategoryPeople])
	assert.Equal(t, t0, rec.SyncTimestamps[entity.CategoryLinks], "absent category keeps its stamp")
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_UpsertPreservesInsertOnlyFields(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore[testDoc]()
	s.Put(ctx, &Record[testDoc]{SourceID: 5, ExternallyManaged: true, IsDeleted: true})

	rec, created, err := s.Upsert(ctx, &Record[testDoc]{SourceID: 5, Entity: testDoc{Title: "x"}})
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, rec.ExternallyManaged)
	assert.True(t, rec.IsDeleted)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore[testDoc]()
	_, _, err := s.Upsert(ctx, &Record[testDoc]{
		SourceID:       9,
		SyncTimestamps: map[entity.Category]time.Time{entity.CategoryCore: time.Now()},
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, 9)
	require.NoError(t, err)
	delete(got.SyncTimestamps, entity.CategoryCore)

	again, err := s.Get(ctx, 9)
	require.NoError(t, err)
	assert.Contains(t, again.SyncTimestamps, entity.CategoryCore)
}

func TestMergeTimestamps(t *testing.T) {
	t.Parallel()

	early := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Minute)

	tests := []struct {
		name string
		prev map[entity.Category]time.Time
		next map[entity.Category]time.Time
		want map[entity.Category]time.Time
	}{
		{
			name: "nil inputs",
			want: map[entity.Category]time.Time{},
		},
		{
			name: "new key added",
			prev: map[entity.Category]time.Time{entity.CategoryCore: early},
			next: map[entity.Category]time.Time{entity.CategoryPeople: late},
			want: map[entity.Category]time.Time{entity.CategoryCore: early, entity.CategoryPeople: late},
		},
		{
			name: "later stamp wins",
			prev: map[entity.Category]time.Time{entity.CategoryCore: early},
			next: map[entity.Category]time.Time{entity.CategoryCore: late},
			want: map[entity.Category]time.Time{entity.CategoryCore: late},
		},
		{
			name: "earlier stamp ignored",
			prev: map[entity.Category]time.Time{entity.CategoryCore: late},
			next: map[entity.Category]time.Time{entity.CategoryCore: early},
			want: map[entity.Category]time.Time{entity.CategoryCore: late},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, MergeTimestamps(tt.prev, tt.next))
		})
	}
}
