package store

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MemoryStore is a Store held in process memory.
type MemoryStore[D any] struct {
	mu      sync.RWMutex
	records map[int64]*Record[D]
	now     func() time.Time
}

var _ Store[struct{}] = (*MemoryStore[struct{}])(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore[D any]() *MemoryStore[D] {
	return &MemoryStore[D]{
		records: make(map[int64]*Record[D]),
		now:     time.Now,
	}
}

// Get returns a copy of the stored record.
func (s *MemoryStore[D]) Get(_ context.Context, sourceID int64) (*Record[D], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[sourceID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(rec), nil
}

// Upsert implements Store.
func (s *MemoryStore[D]) Upsert(_ context.Context, rec *Record[D]) (*Record[D], bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	existing, ok := s.records[rec.SourceID]
	if !ok {
		stored := &Record[D]{
			SourceID:       rec.SourceID,
			Entity:         rec.Entity,
			SyncTimestamps: MergeTimestamps(nil, rec.SyncTimestamps),
			LastSyncedAt:   rec.LastSyncedAt,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		s.records[rec.SourceID] = stored
		return clone(stored), true, nil
	}

	existing.Entity = rec.Entity
	existing.SyncTimestamps = MergeTimestamps(existing.SyncTimestamps, rec.SyncTimestamps)
	existing.LastSyncedAt = rec.LastSyncedAt
	existing.UpdatedAt = now
	return clone(existing), false, nil
}

// Put stores rec as is, replacing any existing record. It is used by writers
// other than the sync engine, for example to seed externally managed records.
func (s *MemoryStore[D]) Put(_ context.Context, rec *Record[D]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.SourceID] = clone(rec)
}

// Len returns the number of stored records.
func (s *MemoryStore[D]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func clone[D any](rec *Record[D]) *Record[D] {
	out := *rec
	out.SyncTimestamps = maps.Clone(rec.SyncTimestamps)
	return &out
}
