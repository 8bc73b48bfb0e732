// Package postgres provides a PostgreSQL-backed document store. All entity
// types share the entity_documents table keyed by (entity_type, source_id).
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/otel"
	"github.com/glsync/glsync/internal/store"
)

// TracerName is the name used for the PostgreSQL store tracer.
const TracerName = "github.com/glsync/glsync/store/postgres"

const getQuery = `
SELECT data, sync_timestamps, last_synced_at, is_deleted, externally_managed, created_at, updated_at
FROM entity_documents
WHERE entity_type = $1 AND source_id = $2`

// sync_timestamps is merged per category, keeping the later stamp of the two.
const upsertQuery = `
INSERT INTO entity_documents (
    entity_type, source_id, data, sync_timestamps, last_synced_at, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (entity_type, source_id) DO UPDATE SET
    data            = EXCLUDED.data,
    sync_timestamps = (
        SELECT COALESCE(jsonb_object_agg(latest.key, latest.value), '{}'::jsonb)
        FROM (
            SELECT DISTINCT ON (stamp.key) stamp.key, stamp.value
            FROM (
                SELECT key, value FROM jsonb_each(entity_documents.sync_timestamps)
                UNION ALL
                SELECT key, value FROM jsonb_each(EXCLUDED.sync_timestamps)
            ) AS stamp
            ORDER BY stamp.key, (stamp.value #>> '{}')::timestamptz DESC
        ) AS latest
    ),
    last_synced_at  = EXCLUDED.last_synced_at,
    updated_at      = EXCLUDED.updated_at
RETURNING data, sync_timestamps, last_synced_at, is_deleted, externally_managed, created_at, updated_at,
    (xmax = 0) AS inserted`

// DB is the subset of pgx used by the store. *pgxpool.Pool satisfies it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Option configures a Store.
type Option func(*options)

type options struct {
	tracer trace.Tracer
	now    func() time.Time
}

// WithTracer enables tracing of store operations.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// Store is a store.Store backed by PostgreSQL.
type Store[D any] struct {
	db         DB
	entityType entity.Type
	opts       options
}

var _ store.Store[struct{}] = (*Store[struct{}])(nil)

// New returns a store for one entity type.
func New[D any](db DB, entityType entity.Type, opts ...Option) *Store[D] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[D]{db: db, entityType: entityType, opts: o}
}

// Get implements store.Store.
func (s *Store[D]) Get(ctx context.Context, sourceID int64) (*store.Record[D], error) {
	ctx, span := s.startSpan(ctx, "postgres.Get", sourceID)
	defer span.End()

	row := s.db.QueryRow(ctx, getQuery, string(s.entityType), sourceID)
	rec, _, err := scanRecord[D](row, sourceID, false)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to get %s %d: %w", s.entityType, sourceID, err)
	}
	return rec, nil
}

// Upsert implements store.Store.
func (s *Store[D]) Upsert(ctx context.Context, rec *store.Record[D]) (*store.Record[D], bool, error) {
	ctx, span := s.startSpan(ctx, "postgres.Upsert", rec.SourceID)
	defer span.End()

	data, err := json.Marshal(rec.Entity)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode %s %d: %w", s.entityType, rec.SourceID, err)
	}
	stamps := rec.SyncTimestamps
	if stamps == nil {
		stamps = map[entity.Category]time.Time{}
	}
	stampsJSON, err := json.Marshal(stamps)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode sync timestamps: %w", err)
	}

	row := s.db.QueryRow(ctx, upsertQuery,
		string(s.entityType),
		rec.SourceID,
		data,
		stampsJSON,
		rec.LastSyncedAt,
		s.opts.now(),
	)
	stored, inserted, err := scanRecord[D](row, rec.SourceID, true)
	if err != nil {
		otel.RecordError(span, err)
		return nil, false, fmt.Errorf("failed to upsert %s %d: %w", s.entityType, rec.SourceID, err)
	}
	return stored, inserted, nil
}

func (s *Store[D]) startSpan(ctx context.Context, name string, sourceID int64) (context.Context, trace.Span) {
	return otel.StartSpan(ctx, s.opts.tracer, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemPostgreSQL,
			otel.AttrEntityType.String(string(s.entityType)),
			otel.AttrSourceID.Int64(sourceID),
		),
	)
}

func scanRecord[D any](row pgx.Row, sourceID int64, withInserted bool) (*store.Record[D], bool, error) {
	var (
		data, stamps []byte
		inserted     bool
		rec          = &store.Record[D]{SourceID: sourceID}
	)

	dest := []any{
		&data, &stamps, &rec.LastSyncedAt, &rec.IsDeleted, &rec.ExternallyManaged,
		&rec.CreatedAt, &rec.UpdatedAt,
	}
	if withInserted {
		dest = append(dest, &inserted)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, false, err
	}

	if err := json.Unmarshal(data, &rec.Entity); err != nil {
		return nil, false, fmt.Errorf("failed to decode entity: %w", err)
	}
	if err := json.Unmarshal(stamps, &rec.SyncTimestamps); err != nil {
		return nil, false, fmt.Errorf("failed to decode sync timestamps: %w", err)
	}
	return rec, inserted, nil
}
