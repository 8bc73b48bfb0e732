package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/glsync/glsync/sync"

	// QueueMetricsMeterName is the name used for the queue metrics meter
	QueueMetricsMeterName = "github.com/glsync/glsync/queue"
)

// SyncMetrics holds the OpenTelemetry instruments for sync runs
type SyncMetrics struct {
	runDuration     metric.Float64Histogram
	entityOutcomes  metric.Int64Counter
	categoryResults metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	runDuration, err := meter.Float64Histogram(
		"glsync_sync_duration_seconds",
		metric.WithDescription("Duration of sync runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600),
	)
	if err != nil {
		return nil, err
	}

	entityOutcomes, err := meter.Int64Counter(
		"glsync_sync_entities_total",
		metric.WithDescription("Entities handled by sync runs, by outcome"),
		metric.WithUnit("{entity}"),
	)
	if err != nil {
		return nil, err
	}

	categoryResults, err := meter.Int64Counter(
		"glsync_sync_categories_total",
		metric.WithDescription("Category fetch results, by category and success"),
		metric.WithUnit("{category}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		runDuration:     runDuration,
		entityOutcomes:  entityOutcomes,
		categoryResults: categoryResults,
	}, nil
}

// RecordRunDuration records the duration of one sync run for an entity type
func (m *SyncMetrics) RecordRunDuration(ctx context.Context, entityType string, duration time.Duration, success bool) {
	if m == nil || m.runDuration == nil {
		return
	}

	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("entity_type", entityType),
		attribute.Bool("success", success),
	))
}

// RecordEntityOutcomes adds n entities with the given outcome
// (created, updated, skipped or errored).
func (m *SyncMetrics) RecordEntityOutcomes(ctx context.Context, entityType, outcome string, n int) {
	if m == nil || m.entityOutcomes == nil || n <= 0 {
		return
	}

	m.entityOutcomes.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("entity_type", entityType),
		attribute.String("outcome", outcome),
	))
}

// RecordCategoryResults adds the success and failure counts of one category.
func (m *SyncMetrics) RecordCategoryResults(ctx context.Context, entityType, category string, success, failures int) {
	if m == nil || m.categoryResults == nil {
		return
	}

	record := func(n int, ok bool) {
		if n <= 0 {
			return
		}
		m.categoryResults.Add(ctx, int64(n), metric.WithAttributes(
			attribute.String("entity_type", entityType),
			attribute.String("category", category),
			attribute.Bool("success", ok),
		))
	}
	record(success, true)
	record(failures, false)
}

// QueueMetrics holds the OpenTelemetry instruments for the job queues
type QueueMetrics struct {
	jobEvents metric.Int64Counter
}

// NewQueueMetrics creates a new QueueMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewQueueMetrics(provider metric.MeterProvider) (*QueueMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(QueueMetricsMeterName)

	jobEvents, err := meter.Int64Counter(
		"glsync_queue_job_events_total",
		metric.WithDescription("Job lifecycle events, by queue and event"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return &QueueMetrics{jobEvents: jobEvents}, nil
}

// RecordJobEvent records one job lifecycle event
func (m *QueueMetrics) RecordJobEvent(ctx context.Context, queue, event string) {
	if m == nil || m.jobEvents == nil {
		return
	}

	m.jobEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", queue),
		attribute.String("event", event),
	))
}
