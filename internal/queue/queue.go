package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/glsync/glsync/internal/telemetry"
)

// TracerName is the name used for the queue tracer.
const TracerName = "github.com/glsync/glsync/queue"

// Defaults of Config.
const (
	DefaultMaxAttempts          = 3
	DefaultBackoffBase          = 5 * time.Second
	DefaultBackoffMax           = 5 * time.Minute
	DefaultRemoveOnComplete     = 100
	DefaultRemoveOnFail         = 500
	DefaultStalledAfter         = 30 * time.Minute
	DefaultStalledCheckInterval = 30 * time.Second
	DefaultPollInterval         = time.Second
)

// Config holds the queue tuning knobs. Zero values take the defaults.
type Config struct {
	// MaxAttempts bounds the attempts of a job, the first one included.
	MaxAttempts int
	// BackoffBase is the delay before the first retry. Each further retry
	// doubles it, up to BackoffMax.
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// RemoveOnComplete and RemoveOnFail keep the newest N completed and
	// failed jobs. Negative values keep everything.
	RemoveOnComplete int
	RemoveOnFail     int
	// StalledAfter is how long a job may stay active before it is reported
	// as stalled, checked every StalledCheckInterval.
	StalledAfter         time.Duration
	StalledCheckInterval time.Duration
	// PollInterval is how often the worker and the repeat loop look for due
	// work when nothing woke them.
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = DefaultBackoffMax
	}
	if c.RemoveOnComplete == 0 {
		c.RemoveOnComplete = DefaultRemoveOnComplete
	}
	if c.RemoveOnFail == 0 {
		c.RemoveOnFail = DefaultRemoveOnFail
	}
	if c.StalledAfter <= 0 {
		c.StalledAfter = DefaultStalledAfter
	}
	if c.StalledCheckInterval <= 0 {
		c.StalledCheckInterval = DefaultStalledCheckInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// ProgressFunc reports the progress of the running job in percent.
type ProgressFunc func(percent int)

// Processor runs one attempt of a job. The returned value is stored as the
// job's return value. Returning an error schedules a retry until the attempts
// are exhausted; errors wrapped with backoff.Permanent fail the job at once.
type Processor func(ctx context.Context, job *Job, progress ProgressFunc) (any, error)

// Option configures a Queue.
type Option func(*Queue)

// WithConfig sets the queue configuration.
func WithConfig(cfg Config) Option {
	return func(q *Queue) {
		q.cfg = cfg.withDefaults()
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		q.logger = l
	}
}

// WithMetrics sets the queue metrics.
func WithMetrics(m *telemetry.QueueMetrics) Option {
	return func(q *Queue) {
		q.metrics = m
	}
}

// WithTracer enables tracing of job attempts.
func WithTracer(t trace.Tracer) Option {
	return func(q *Queue) {
		q.tracer = t
	}
}

// WithClock overrides the clock used for job timestamps and schedules.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		q.now = now
	}
}

// Queue is a named job queue with a single worker.
type Queue struct {
	name    string
	store   JobStore
	process Processor
	cfg     Config
	logger  *slog.Logger
	metrics *telemetry.QueueMetrics
	tracer  trace.Tracer
	now     func() time.Time

	paused atomic.Bool
	wake   chan struct{}

	// repeatMu serializes changes to repeatable descriptors.
	repeatMu sync.Mutex

	mu        sync.Mutex
	lastSeq   int64
	listeners []Listener
	started   bool
	closed    bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New returns a queue persisting through store and running jobs with process.
func New(name string, store JobStore, process Processor, opts ...Option) *Queue {
	q := &Queue{
		name:    name,
		store:   store,
		process: process,
		cfg:     Config{}.withDefaults(),
		logger:  slog.Default(),
		now:     time.Now,
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.With("queue", name)
	return q
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

// Add enqueues one job. data is stored as JSON.
func (q *Queue) Add(ctx context.Context, name string, data any, opts JobOptions) (*Job, error) {
	if q.isClosed() {
		return nil, ErrQueueClosed
	}
	raw, err := encode(data)
	if err != nil {
		return nil, err
	}
	job := q.newJob(name, raw, opts.Priority, opts.MaxAttempts, "")
	if err := q.store.Save(ctx, job); err != nil {
		return nil, err
	}
	q.logger.DebugContext(ctx, "Job added", "job_id", job.ID, "job_name", name, "priority", job.Priority)
	q.notify()
	return job, nil
}

// Get returns a job of this queue.
func (q *Queue) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	job, err := q.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Queue != q.name {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Jobs returns the jobs in state, in run order.
func (q *Queue) Jobs(ctx context.Context, state State) ([]*Job, error) {
	return q.store.List(ctx, q.name, state)
}

// AddRepeatable registers a job enqueued every interval. The first job is
// enqueued one interval from now. Registering an existing key updates its
// data and keeps its schedule.
func (q *Queue) AddRepeatable(ctx context.Context, name string, every time.Duration, data any, opts JobOptions) (*Repeatable, error) {
	if q.isClosed() {
		return nil, ErrQueueClosed
	}
	if every <= 0 {
		return nil, fmt.Errorf("invalid repeat interval %s for %s", every, name)
	}
	raw, err := encode(data)
	if err != nil {
		return nil, err
	}

	q.repeatMu.Lock()
	defer q.repeatMu.Unlock()

	key := RepeatKey(name, every)
	now := q.now()
	r := &Repeatable{
		Queue:     q.name,
		Key:       key,
		Name:      name,
		Every:     every,
		Data:      raw,
		Priority:  priority(opts.Priority),
		NextRunAt: now.Add(every),
		CreatedAt: now,
	}

	existing, err := q.store.Repeatables(ctx, q.name)
	if err != nil {
		return nil, err
	}
	for _, e := range existing {
		if e.Key == key {
			r.NextRunAt = e.NextRunAt
			r.CreatedAt = e.CreatedAt
		}
	}
	if err := q.store.SaveRepeatable(ctx, r); err != nil {
		return nil, err
	}
	q.logger.InfoContext(ctx, "Repeatable job registered", "key", key, "every", every, "next_run_at", r.NextRunAt)
	return r, nil
}

// RemoveRepeatable removes a repeatable descriptor and reports whether it
// existed. Jobs it already enqueued are kept.
func (q *Queue) RemoveRepeatable(ctx context.Context, key string) (bool, error) {
	q.repeatMu.Lock()
	defer q.repeatMu.Unlock()

	removed, err := q.store.DeleteRepeatable(ctx, q.name, key)
	if err != nil {
		return false, err
	}
	if removed {
		q.logger.InfoContext(ctx, "Repeatable job removed", "key", key)
	}
	return removed, nil
}

// Repeatables returns the registered repeatable descriptors.
func (q *Queue) Repeatables(ctx context.Context) ([]*Repeatable, error) {
	return q.store.Repeatables(ctx, q.name)
}

// Pause stops the worker from starting new jobs. A running job finishes and
// new jobs keep accumulating.
func (q *Queue) Pause() {
	if !q.paused.Swap(true) {
		q.logger.Info("Queue paused")
	}
}

// Resume lets the worker start jobs again.
func (q *Queue) Resume() {
	if q.paused.Swap(false) {
		q.logger.Info("Queue resumed")
		q.notify()
	}
}

// IsPaused reports whether the queue is paused.
func (q *Queue) IsPaused() bool {
	return q.paused.Load()
}

// Counts returns the number of jobs per state.
func (q *Queue) Counts(ctx context.Context) (Counts, error) {
	return q.store.Counts(ctx, q.name)
}

// Clean removes jobs in state that finished more than grace ago and returns
// how many were removed. Only completed and failed jobs can be cleaned.
func (q *Queue) Clean(ctx context.Context, grace time.Duration, state State) (int, error) {
	if state != StateCompleted && state != StateFailed {
		return 0, fmt.Errorf("cannot clean %s jobs", state)
	}
	n, err := q.store.Clean(ctx, q.name, state, q.now().Add(-grace))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		q.logger.InfoContext(ctx, "Cleaned jobs", "state", state, "removed", n, "grace", grace)
	}
	return n, nil
}

func (q *Queue) newJob(name string, data json.RawMessage, prio, maxAttempts int, repeatKey string) *Job {
	if maxAttempts <= 0 {
		maxAttempts = q.cfg.MaxAttempts
	}
	return &Job{
		ID:          uuid.New(),
		Queue:       q.name,
		Name:        name,
		Data:        data,
		Priority:    priority(prio),
		Seq:         q.nextSeq(),
		State:       StateWaiting,
		MaxAttempts: maxAttempts,
		RepeatKey:   repeatKey,
		CreatedAt:   q.now(),
	}
}

// nextSeq returns a strictly increasing sequence number. It follows the wall
// clock so FIFO order holds across restarts.
func (q *Queue) nextSeq() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	seq := max(time.Now().UnixNano(), q.lastSeq+1)
	q.lastSeq = seq
	return seq
}

func (q *Queue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func priority(p int) int {
	if p <= 0 {
		return PriorityDefault
	}
	return p
}

func encode(data any) (json.RawMessage, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job data: %w", err)
	}
	return raw, nil
}
