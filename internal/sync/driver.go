package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/otel"
	"github.com/glsync/glsync/internal/store"
	"github.com/glsync/glsync/internal/telemetry"
)

const (
	// TracerName is the name used for the sync driver tracer.
	TracerName = "github.com/glsync/glsync/sync"

	// DefaultErrorAlertThreshold is the per-run entity error count above
	// which an operator alert is logged.
	DefaultErrorAlertThreshold = 50

	progressDiscovered = 5
	progressDone       = 100
)

// errNotReturned marks a candidate the upstream did not return details for.
var errNotReturned = errors.New("entity not returned upstream")

// Plugin adapts one entity type to the Driver. R is the composite assembled
// from category fetches and D the stored document.
type Plugin[R any, D any] interface {
	EntityType() entity.Type
	ListCandidates(ctx context.Context, opts Options) ([]entity.Target, error)
	// FetchDetail returns nil without an error when the upstream did not
	// return the entity.
	FetchDetail(ctx context.Context, targets []entity.Target) (*R, error)
	MapToStorageSchema(rec *R) (D, error)
	Categories() []entity.Category
	IsCategoryPresent(rec *R, c entity.Category) bool
	ShouldSkip(existing *store.Record[D], opts Options) bool
}

// Runner runs syncs for one entity type.
type Runner interface {
	EntityType() entity.Type
	Run(ctx context.Context, opts Options, progress ProgressFunc) (*Result, error)
}

// Option configures a Driver.
type Option func(*driverConfig)

type driverConfig struct {
	logger              *slog.Logger
	tracer              trace.Tracer
	metrics             *telemetry.SyncMetrics
	now                 func() time.Time
	errorAlertThreshold int
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *driverConfig) {
		c.logger = l
	}
}

// WithTracer enables tracing of runs.
func WithTracer(t trace.Tracer) Option {
	return func(c *driverConfig) {
		c.tracer = t
	}
}

// WithMetrics sets the sync metrics.
func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(c *driverConfig) {
		c.metrics = m
	}
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *driverConfig) {
		c.now = now
	}
}

// WithErrorAlertThreshold sets the per-run error count that triggers an
// operator alert.
func WithErrorAlertThreshold(n int) Option {
	return func(c *driverConfig) {
		if n > 0 {
			c.errorAlertThreshold = n
		}
	}
}

// Driver runs incremental syncs of one entity type.
type Driver[R any, D any] struct {
	plugin Plugin[R, D]
	store  store.Store[D]
	cfg    driverConfig
}

// NewDriver returns a driver persisting through st.
func NewDriver[R any, D any](plugin Plugin[R, D], st store.Store[D], opts ...Option) *Driver[R, D] {
	cfg := driverConfig{
		logger:              slog.Default(),
		now:                 time.Now,
		errorAlertThreshold: DefaultErrorAlertThreshold,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Driver[R, D]{plugin: plugin, store: st, cfg: cfg}
}

// EntityType returns the entity type the driver syncs.
func (d *Driver[R, D]) EntityType() entity.Type {
	return d.plugin.EntityType()
}

// Run performs one sync run. Only discovery failures and cancellation are
// returned as errors; per-entity failures are counted in the result.
func (d *Driver[R, D]) Run(ctx context.Context, opts Options, progress ProgressFunc) (*Result, error) {
	if progress == nil {
		progress = func(int) {}
	}
	entityType := d.plugin.EntityType()
	logger := d.cfg.logger.With("entity_type", entityType)

	ctx, span := otel.StartSpan(ctx, d.cfg.tracer, "sync.Run",
		trace.WithAttributes(
			otel.AttrEntityType.String(string(entityType)),
			otel.AttrFullSync.Bool(opts.FullSync),
			otel.AttrScope.String(opts.Scope),
		),
	)
	defer span.End()

	res := newResult(entityType, d.plugin.Categories(), d.cfg.now())
	logger.InfoContext(ctx, "Starting sync run",
		"full_sync", opts.FullSync,
		"scope", opts.Scope,
		"batch_size", opts.EffectiveBatchSize())

	candidates, err := d.plugin.ListCandidates(ctx, opts)
	if err != nil {
		runErr := &Error{Stage: StageDiscovery, EntityType: entityType, Err: err}
		otel.RecordError(span, runErr)
		d.cfg.metrics.RecordRunDuration(ctx, string(entityType), d.cfg.now().Sub(res.StartedAt), false)
		logger.ErrorContext(ctx, "Candidate discovery failed", "error", err)
		return nil, runErr
	}
	res.Candidates = len(candidates)
	progress(progressDiscovered)

	batch := opts.EffectiveBatchSize()
	for i, target := range candidates {
		if err := ctx.Err(); err != nil {
			runErr := &Error{Stage: StageProcess, EntityType: entityType, Err: err}
			otel.RecordError(span, runErr)
			logger.WarnContext(ctx, "Sync run cancelled", "processed", res.Processed, "candidates", res.Candidates)
			d.record(ctx, res, false)
			return nil, runErr
		}

		out, err := d.process(ctx, target, opts, res)
		res.Processed++
		switch out {
		case outcomeCreated:
			res.Created++
		case outcomeUpdated:
			res.Updated++
		case outcomeSkipped:
			res.Skipped++
		case outcomeErrored:
			res.Errored++
			logger.WarnContext(ctx, "Failed to sync entity",
				"source_id", target.SourceID,
				"error", err)
		}

		if done := i + 1; done%batch == 0 && done < len(candidates) {
			progress(progressDiscovered + (progressDone-progressDiscovered)*done/len(candidates))
		}
	}
	progress(progressDone)
	res.finish(d.cfg.now())

	if res.Errored > d.cfg.errorAlertThreshold {
		logger.ErrorContext(ctx, "Sync run needs operator attention: entity error count above threshold",
			"errored", res.Errored,
			"threshold", d.cfg.errorAlertThreshold,
			"candidates", res.Candidates)
	}
	logger.InfoContext(ctx, "Sync run completed",
		"candidates", res.Candidates,
		"created", res.Created,
		"updated", res.Updated,
		"skipped", res.Skipped,
		"errored", res.Errored,
		"duration", res.Duration)
	span.SetAttributes(otel.AttrResultCount.Int(res.Processed))
	d.record(ctx, res, true)
	return res, nil
}

type outcome int

const (
	outcomeErrored outcome = iota
	outcomeCreated
	outcomeUpdated
	outcomeSkipped
)

// process syncs one candidate and reports its outcome.
func (d *Driver[R, D]) process(ctx context.Context, target entity.Target, opts Options, res *Result) (outcome, error) {
	existing, err := d.store.Get(ctx, target.SourceID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		existing = nil
	case err != nil:
		return outcomeErrored, fmt.Errorf("failed to load existing record: %w", err)
	}

	if existing != nil && d.plugin.ShouldSkip(existing, opts) {
		return outcomeSkipped, nil
	}

	composite, err := d.plugin.FetchDetail(ctx, []entity.Target{target})
	if err != nil {
		return outcomeErrored, fmt.Errorf("failed to fetch detail: %w", err)
	}
	if composite == nil {
		return outcomeErrored, errNotReturned
	}

	doc, err := d.plugin.MapToStorageSchema(composite)
	if err != nil {
		return outcomeErrored, fmt.Errorf("failed to map entity: %w", err)
	}

	now := d.cfg.now()
	stamps := make(map[entity.Category]time.Time)
	for _, c := range d.plugin.Categories() {
		cr := res.Categories[c]
		if !d.plugin.IsCategoryPresent(composite, c) {
			cr.Failures++
			continue
		}
		stamps[c] = now
		cr.Success++
		stamped := now
		cr.LastSyncedAt = &stamped
	}

	_, created, err := d.store.Upsert(ctx, &store.Record[D]{
		SourceID:       target.SourceID,
		Entity:         doc,
		SyncTimestamps: stamps,
		LastSyncedAt:   now,
	})
	if err != nil {
		return outcomeErrored, fmt.Errorf("failed to persist entity: %w", err)
	}
	if created {
		return outcomeCreated, nil
	}
	return outcomeUpdated, nil
}

func (d *Driver[R, D]) record(ctx context.Context, res *Result, success bool) {
	m := d.cfg.metrics
	if m == nil {
		return
	}
	entityType := string(res.EntityType)
	m.RecordRunDuration(ctx, entityType, d.cfg.now().Sub(res.StartedAt), success)
	m.RecordEntityOutcomes(ctx, entityType, "created", res.Created)
	m.RecordEntityOutcomes(ctx, entityType, "updated", res.Updated)
	m.RecordEntityOutcomes(ctx, entityType, "skipped", res.Skipped)
	m.RecordEntityOutcomes(ctx, entityType, "errored", res.Errored)
	for c, cr := range res.Categories {
		m.RecordCategoryResults(ctx, entityType, string(c), cr.Success, cr.Failures)
	}
}
