// Package mongodb provides a MongoDB-backed document store with one
// collection per entity type.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/trace"

	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/otel"
	"github.com/glsync/glsync/internal/store"
)

// TracerName is the name used for the MongoDB store tracer.
const TracerName = "github.com/glsync/glsync/store/mongodb"

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	tracer trace.Tracer
	now    func() time.Time
}

// WithTracer enables tracing of store operations.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *storeOptions) {
		o.tracer = tracer
	}
}

// Store is a store.Store backed by a MongoDB collection.
type Store[D any] struct {
	coll       *mongo.Collection
	entityType entity.Type
	opts       storeOptions
}

var _ store.Store[struct{}] = (*Store[struct{}])(nil)

// New returns a store using the collection named after the entity type.
func New[D any](db *mongo.Database, entityType entity.Type, opts ...Option) *Store[D] {
	o := storeOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[D]{
		coll:       db.Collection(string(entityType)),
		entityType: entityType,
		opts:       o,
	}
}

// EnsureIndexes creates the unique sourceId index.
func (s *Store[D]) EnsureIndexes(ctx context.Context) error {
	name, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "sourceId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create index on %s: %w", s.coll.Name(), err)
	}
	slog.Debug("Ensured collection index", "collection", s.coll.Name(), "index", name)
	return nil
}

// Get implements store.Store.
func (s *Store[D]) Get(ctx context.Context, sourceID int64) (*store.Record[D], error) {
	ctx, span := s.startSpan(ctx, "mongodb.Get", sourceID)
	defer span.End()

	var rec store.Record[D]
	err := s.coll.FindOne(ctx, bson.M{"sourceId": sourceID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to get %s %d: %w", s.entityType, sourceID, err)
	}
	return &rec, nil
}

// Upsert implements store.Store. The pre-image returned by the driver tells
// whether the document was created and provides the insert-only fields.
func (s *Store[D]) Upsert(ctx context.Context, rec *store.Record[D]) (*store.Record[D], bool, error) {
	ctx, span := s.startSpan(ctx, "mongodb.Upsert", rec.SourceID)
	defer span.End()

	now := s.opts.now()
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.Before)

	var before store.Record[D]
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"sourceId": rec.SourceID}, buildUpdate(rec, now), opts).Decode(&before)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return &store.Record[D]{
			SourceID:       rec.SourceID,
			Entity:         rec.Entity,
			SyncTimestamps: store.MergeTimestamps(nil, rec.SyncTimestamps),
			LastSyncedAt:   rec.LastSyncedAt,
			CreatedAt:      now,
			UpdatedAt:      now,
		}, true, nil
	case err != nil:
		otel.RecordError(span, err)
		return nil, false, fmt.Errorf("failed to upsert %s %d: %w", s.entityType, rec.SourceID, err)
	}

	stored := before
	stored.Entity = rec.Entity
	stored.SyncTimestamps = store.MergeTimestamps(before.SyncTimestamps, rec.SyncTimestamps)
	stored.LastSyncedAt = rec.LastSyncedAt
	stored.UpdatedAt = now
	return &stored, false, nil
}

// buildUpdate returns the update document for an upsert. Category stamps use
// $max so a stamp never moves backwards and untouched categories are kept.
func buildUpdate[D any](rec *store.Record[D], now time.Time) bson.M {
	update := bson.M{
		"$set": bson.M{
			"entity":       rec.Entity,
			"lastSyncedAt": rec.LastSyncedAt,
			"updatedAt":    now,
		},
		"$setOnInsert": bson.M{
			"createdAt":         now,
			"isDeleted":         false,
			"externallyManaged": false,
		},
	}
	if len(rec.SyncTimestamps) > 0 {
		stamps := bson.M{}
		for c, ts := range rec.SyncTimestamps {
			stamps["syncTimestamps."+string(c)] = ts
		}
		update["$max"] = stamps
	}
	return update
}

func (s *Store[D]) startSpan(ctx context.Context, name string, sourceID int64) (context.Context, trace.Span) {
	return otel.StartSpan(ctx, s.opts.tracer, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			otel.AttrEntityType.String(string(s.entityType)),
			otel.AttrSourceID.Int64(sourceID),
		),
	)
}
