// Package store defines the document store used to persist synchronized
// entities and provides an in-memory implementation.
package store

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/glsync/glsync/internal/entity"
)

// ErrNotFound is returned by Get when no record exists for a source id.
var ErrNotFound = errors.New("record not found")

// Record wraps a stored entity document with its sync bookkeeping.
type Record[D any] struct {
	// SourceID is the normalised upstream id and the upsert key.
	SourceID int64 `json:"sourceId" bson:"sourceId"`
	// Entity holds the mapped business fields. It is replaced on every upsert.
	Entity D `json:"entity" bson:"entity"`
	// SyncTimestamps records, per category, when that category was last
	// successfully fetched. Upserts merge it key by key.
	SyncTimestamps map[entity.Category]time.Time `json:"syncTimestamps" bson:"syncTimestamps"`
	// LastSyncedAt is when the record was last written by a sync.
	LastSyncedAt time.Time `json:"lastSyncedAt" bson:"lastSyncedAt"`
	// IsDeleted marks a soft-deleted record. Sync never sets it.
	IsDeleted bool `json:"isDeleted" bson:"isDeleted"`
	// ExternallyManaged marks records owned by another writer. Sync never
	// overwrites it and the skip policy always skips such records.
	ExternallyManaged bool      `json:"externallyManaged" bson:"externallyManaged"`
	CreatedAt         time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Store persists records of one entity type.
type Store[D any] interface {
	// Get returns the record for sourceID or ErrNotFound.
	Get(ctx context.Context, sourceID int64) (*Record[D], error)

	// Upsert inserts or updates the record keyed by rec.SourceID.
	// The entity is replaced, SyncTimestamps is merged per category,
	// LastSyncedAt and UpdatedAt are set. CreatedAt, IsDeleted and
	// ExternallyManaged are only written on insert.
	// It returns the stored record and whether it was created.
	Upsert(ctx context.Context, rec *Record[D]) (*Record[D], bool, error)
}

// MergeTimestamps merges next into prev, keeping for each category the later
// of the two timestamps so a stamp never moves backwards.
func MergeTimestamps(prev, next map[entity.Category]time.Time) map[entity.Category]time.Time {
	out := make(map[entity.Category]time.Time, len(prev)+len(next))
	maps.Copy(out, prev)
	for c, ts := range next {
		if cur, ok := out[c]; !ok || ts.After(cur) {
			out[c] = ts
		}
	}
	return out
}
