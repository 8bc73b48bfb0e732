package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	gosync "sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/queue"
	"github.com/glsync/glsync/internal/sync"
	"github.com/glsync/glsync/internal/telemetry"
)

//go:generate mockgen -destination=mocks/mock_runner.go -package=mocks github.com/glsync/glsync/internal/jobs Runner

// Runner runs syncs for one entity type.
type Runner interface {
	EntityType() entity.Type
	Run(ctx context.Context, opts sync.Options, progress sync.ProgressFunc) (*sync.Result, error)
}

var (
	// ErrUnknownEntityType is returned for an entity type without a queue.
	ErrUnknownEntityType = errors.New("unknown entity type")
	// ErrNotInitialized is returned when the manager is used before Initialize.
	ErrNotInitialized = errors.New("job manager not initialized")
)

// TypeSettings configures the jobs of one entity type.
type TypeSettings struct {
	// Every is the repeat interval. Zero takes DefaultIntervals.
	Every time.Duration
	// Defaults are the options of scheduled jobs and the base of manual ones.
	Defaults sync.Options
}

// Status describes the queue of one entity type.
type Status struct {
	EntityType entity.Type       `json:"entityType"`
	Counts     queue.Counts      `json:"counts"`
	Paused     bool              `json:"paused"`
	Repeatable *queue.Repeatable `json:"repeatable,omitempty"`
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTypeSettings sets the settings of one entity type.
func WithTypeSettings(t entity.Type, s TypeSettings) ManagerOption {
	return func(m *Manager) {
		m.settings[t] = s
	}
}

// WithQueueConfig sets the configuration shared by every queue.
func WithQueueConfig(cfg queue.Config) ManagerOption {
	return func(m *Manager) {
		m.queueConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithMetrics sets the queue metrics.
func WithMetrics(qm *telemetry.QueueMetrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = qm
	}
}

// WithTracer sets the tracer of job attempts.
func WithTracer(t trace.Tracer) ManagerOption {
	return func(m *Manager) {
		m.tracer = t
	}
}

// WithQueueOptions appends options applied to every queue.
func WithQueueOptions(opts ...queue.Option) ManagerOption {
	return func(m *Manager) {
		m.queueOpts = append(m.queueOpts, opts...)
	}
}

type entry struct {
	runner    Runner
	queue     *queue.Queue
	scheduler *Scheduler
	settings  TypeSettings
}

// Manager owns one queue and one scheduler per entity type.
type Manager struct {
	runners     map[entity.Type]Runner
	store       queue.JobStore
	settings    map[entity.Type]TypeSettings
	queueConfig queue.Config
	queueOpts   []queue.Option
	logger      *slog.Logger
	metrics     *telemetry.QueueMetrics
	tracer      trace.Tracer

	mu          gosync.Mutex
	entries     map[entity.Type]*entry
	initialized bool
}

// NewManager returns a manager for the given runners, persisting jobs in store.
func NewManager(runners []Runner, store queue.JobStore, opts ...ManagerOption) *Manager {
	m := &Manager{
		runners:  make(map[entity.Type]Runner, len(runners)),
		store:    store,
		settings: make(map[entity.Type]TypeSettings),
		logger:   slog.Default(),
	}
	for _, r := range runners {
		m.runners[r.EntityType()] = r
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize creates the queues and registers the schedules of every entity
// type. Calling it again is a no-op.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	entries := make(map[entity.Type]*entry, len(m.runners))
	for _, t := range m.types() {
		runner := m.runners[t]
		settings := m.settings[t]
		if settings.Every <= 0 {
			settings.Every = DefaultIntervals[t]
		}
		if settings.Every <= 0 {
			return fmt.Errorf("no repeat interval for %s", t)
		}

		opts := append([]queue.Option{
			queue.WithConfig(m.queueConfig),
			queue.WithLogger(m.logger),
			queue.WithMetrics(m.metrics),
			queue.WithTracer(m.tracer),
		}, m.queueOpts...)
		q := queue.New(string(t), m.store, m.processor(runner), opts...)
		q.On(m.logEvent(t))

		s := NewScheduler(t, q, settings.Every, settings.Defaults, m.logger)
		if err := s.Register(ctx); err != nil {
			return err
		}
		entries[t] = &entry{runner: runner, queue: q, scheduler: s, settings: settings}
	}

	m.entries = entries
	m.initialized = true
	m.logger.InfoContext(ctx, "Job manager initialized", "entity_types", len(entries))
	return nil
}

// Start starts the worker of every queue.
func (m *Manager) Start(ctx context.Context) error {
	entries, err := m.all()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := e.queue.Start(ctx); err != nil {
			return fmt.Errorf("failed to start %s queue: %w", e.runner.EntityType(), err)
		}
	}
	return nil
}

// Stop closes every queue, waiting for running jobs to be interrupted.
func (m *Manager) Stop() error {
	entries, err := m.all()
	if err != nil {
		return nil
	}
	var errs []error
	for _, e := range entries {
		errs = append(errs, e.queue.Close())
	}
	return errors.Join(errs...)
}

// TriggerManual enqueues a high priority job for t. opts override the
// configured defaults field by field.
func (m *Manager) TriggerManual(ctx context.Context, t entity.Type, opts sync.Options) (*queue.Job, error) {
	e, err := m.entry(t)
	if err != nil {
		return nil, err
	}
	merged := e.settings.Defaults
	if opts.BatchSize > 0 {
		merged.BatchSize = opts.BatchSize
	}
	if opts.Scope != "" {
		merged.Scope = opts.Scope
	}
	if opts.FullSync {
		merged.FullSync = true
	}

	job, err := e.queue.Add(ctx, JobName(t), merged, queue.JobOptions{Priority: queue.PriorityHigh})
	if err != nil {
		return nil, fmt.Errorf("failed to trigger %s sync: %w", t, err)
	}
	m.logger.InfoContext(ctx, "Manual sync triggered",
		"entity_type", t,
		"job_id", job.ID,
		"full_sync", merged.FullSync,
		"scope", merged.Scope)
	return job, nil
}

// TriggerAll enqueues a high priority job with default options for every
// entity type.
func (m *Manager) TriggerAll(ctx context.Context) ([]*queue.Job, error) {
	entries, err := m.all()
	if err != nil {
		return nil, err
	}
	jobs := make([]*queue.Job, 0, len(entries))
	for _, e := range entries {
		job, err := m.TriggerManual(ctx, e.runner.EntityType(), sync.Options{})
		if err != nil {
			return jobs, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Pause pauses the queue of t.
func (m *Manager) Pause(t entity.Type) error {
	e, err := m.entry(t)
	if err != nil {
		return err
	}
	e.queue.Pause()
	return nil
}

// Resume resumes the queue of t.
func (m *Manager) Resume(t entity.Type) error {
	e, err := m.entry(t)
	if err != nil {
		return err
	}
	e.queue.Resume()
	return nil
}

// Status returns the status of the queue of t.
func (m *Manager) Status(ctx context.Context, t entity.Type) (*Status, error) {
	e, err := m.entry(t)
	if err != nil {
		return nil, err
	}
	counts, err := e.queue.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s jobs: %w", t, err)
	}
	rep, err := e.scheduler.Repeatable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s schedule: %w", t, err)
	}
	return &Status{
		EntityType: t,
		Counts:     counts,
		Paused:     e.queue.IsPaused(),
		Repeatable: rep,
	}, nil
}

// StatusAll returns the status of every queue in registration order.
func (m *Manager) StatusAll(ctx context.Context) ([]*Status, error) {
	entries, err := m.all()
	if err != nil {
		return nil, err
	}
	statuses := make([]*Status, 0, len(entries))
	for _, e := range entries {
		s, err := m.Status(ctx, e.runner.EntityType())
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

// Cleanup removes completed and failed jobs finished more than graceHours ago
// from every queue and returns how many were removed.
func (m *Manager) Cleanup(ctx context.Context, graceHours int) (int, error) {
	if graceHours < 0 {
		return 0, fmt.Errorf("invalid grace period %dh", graceHours)
	}
	entries, err := m.all()
	if err != nil {
		return 0, err
	}
	grace := time.Duration(graceHours) * time.Hour
	total := 0
	for _, e := range entries {
		for _, state := range []queue.State{queue.StateCompleted, queue.StateFailed} {
			n, err := e.queue.Clean(ctx, grace, state)
			if err != nil {
				return total, fmt.Errorf("failed to clean %s jobs of %s: %w", state, e.runner.EntityType(), err)
			}
			total += n
		}
	}
	return total, nil
}

// Queue returns the queue of t.
func (m *Manager) Queue(t entity.Type) (*queue.Queue, error) {
	e, err := m.entry(t)
	if err != nil {
		return nil, err
	}
	return e.queue, nil
}

func (m *Manager) processor(runner Runner) queue.Processor {
	return func(ctx context.Context, job *queue.Job, progress queue.ProgressFunc) (any, error) {
		var opts sync.Options
		if err := job.Decode(&opts); err != nil {
			return nil, backoff.Permanent(err)
		}
		return runner.Run(ctx, opts, sync.ProgressFunc(progress))
	}
}

func (m *Manager) logEvent(t entity.Type) queue.Listener {
	logger := m.logger.With("entity_type", t)
	return func(ev queue.Event) {
		switch ev.Type {
		case queue.EventStalled:
			logger.Warn("Sync job is taking unusually long", "job_id", ev.Job.ID)
		case queue.EventFailed:
			logger.Error("Sync job failed", "job_id", ev.Job.ID, "attempts", ev.Job.Attempts, "error", ev.Err)
		}
	}
}

// types returns the registered types in registration order, unknown ones last.
func (m *Manager) types() []entity.Type {
	order := make(map[entity.Type]int)
	for i, t := range entity.AllTypes() {
		order[t] = i
	}
	types := make([]entity.Type, 0, len(m.runners))
	for t := range m.runners {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		oi, iok := order[types[i]]
		oj, jok := order[types[j]]
		if iok != jok {
			return iok
		}
		if oi != oj {
			return oi < oj
		}
		return types[i] < types[j]
	})
	return types
}

func (m *Manager) entry(t entity.Type) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return nil, ErrNotInitialized
	}
	e, ok := m.entries[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, t)
	}
	return e, nil
}

func (m *Manager) all() ([]*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return nil, ErrNotInitialized
	}
	entries := make([]*entry, 0, len(m.entries))
	for _, t := range m.types() {
		if e, ok := m.entries[t]; ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}
