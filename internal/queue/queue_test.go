package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

func fastConfig() Config {
	return Config{
		MaxAttempts:          3,
		BackoffBase:          10 * time.Millisecond,
		BackoffMax:           time.Second,
		StalledCheckInterval: time.Hour,
		PollInterval:         5 * time.Millisecond,
	}
}

func newTestQueue(t *testing.T, store JobStore, process Processor, opts ...Option) *Queue {
	t.Helper()
	opts = append([]Option{
		WithConfig(fastConfig()),
		WithLogger(slog.New(slog.DiscardHandler)),
	}, opts...)
	q := New("test", store, process, opts...)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

// collect returns a channel receiving every event of the given types.
func collect(q *Queue, types ...EventType) <-chan Event {
	ch := make(chan Event, 64)
	q.On(func(ev Event) {
		for _, t := range types {
			if ev.Type == t {
				ch <- ev
			}
		}
	})
	return ch
}

func next(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for queue event")
		return Event{}
	}
}

func TestQueue_PriorityThenFIFO(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		ran []string
	)
	q := newTestQueue(t, NewMemoryJobStore(), func(_ context.Context, job *Job, _ ProgressFunc) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		ran = append(ran, job.Name)
		return nil, nil
	})
	done := collect(q, EventCompleted)

	q.Pause()
	require.NoError(t, q.Start(context.Background()))
	ctx := context.Background()
	for _, add := range []struct {
		name     string
		priority int
	}{
		{"first", 0},
		{"second", 0},
		{"urgent", PriorityHigh},
	} {
		_, err := q.Add(ctx, add.name, nil, JobOptions{Priority: add.priority})
		require.NoError(t, err)
	}
	q.Resume()

	for range 3 {
		next(t, done)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"urgent", "first", "second"}, ran)
}

func TestQueue_RetriesWithExponentialBackoff(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, NewMemoryJobStore(), func(context.Context, *Job, ProgressFunc) (any, error) {
		return nil, errors.New("upstream unavailable")
	})
	events := collect(q, EventRetrying, EventFailed)
	require.NoError(t, q.Start(context.Background()))

	job, err := q.Add(context.Background(), "sync", map[string]any{"fullSync": true}, JobOptions{})
	require.NoError(t, err)

	first := next(t, events)
	second := next(t, events)
	failed := next(t, events)

	assert.Equal(t, EventRetrying, first.Type)
	assert.Equal(t, 10*time.Millisecond, first.Delay)
	assert.Equal(t, EventRetrying, second.Type)
	assert.Equal(t, 20*time.Millisecond, second.Delay)
	require.Equal(t, EventFailed, failed.Type)
	assert.EqualError(t, failed.Err, "upstream unavailable")

	stored, err := q.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, stored.State)
	assert.Equal(t, 3, stored.Attempts)
	assert.Equal(t, "upstream unavailable", stored.FailedReason)
	assert.NotNil(t, stored.FinishedAt)
	assert.JSONEq(t, `{"fullSync":true}`, string(stored.Data))
}

func TestQueue_RetryThenSucceed(t *testing.T) {
	t.Parallel()

	calls := 0
	q := newTestQueue(t, NewMemoryJobStore(), func(_ context.Context, _ *Job, progress ProgressFunc) (any, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("discovery failed")
		}
		progress(40)
		return map[string]int{"created": 2}, nil
	})
	events := collect(q, EventCompleted, EventProgress)
	require.NoError(t, q.Start(context.Background()))

	job, err := q.Add(context.Background(), "sync", nil, JobOptions{})
	require.NoError(t, err)

	progress := next(t, events)
	assert.Equal(t, EventProgress, progress.Type)
	assert.Equal(t, 40, progress.Job.Progress)
	completed := next(t, events)
	assert.Equal(t, EventCompleted, completed.Type)

	stored, err := q.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, stored.State)
	assert.Equal(t, 2, stored.Attempts)
	assert.Equal(t, 100, stored.Progress)
	assert.JSONEq(t, `{"created":2}`, string(stored.ReturnValue))
}

func TestQueue_PermanentErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, NewMemoryJobStore(), func(context.Context, *Job, ProgressFunc) (any, error) {
		return nil, backoff.Permanent(errors.New("bad job data"))
	})
	failed := collect(q, EventFailed)
	require.NoError(t, q.Start(context.Background()))

	_, err := q.Add(context.Background(), "sync", nil, JobOptions{})
	require.NoError(t, err)

	ev := next(t, failed)
	assert.Equal(t, 1, ev.Job.Attempts)
	assert.Equal(t, "bad job data", ev.Job.FailedReason)
}

func TestQueue_PauseAccumulatesJobs(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		calls int
	)
	q := newTestQueue(t, NewMemoryJobStore(), func(context.Context, *Job, ProgressFunc) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return nil, nil
	})
	done := collect(q, EventCompleted)
	require.NoError(t, q.Start(context.Background()))

	q.Pause()
	assert.True(t, q.IsPaused())
	ctx := context.Background()
	for range 2 {
		_, err := q.Add(ctx, "sync", nil, JobOptions{})
		require.NoError(t, err)
	}

	time.Sleep(50 * time.Millisecond)
	counts, err := q.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Waiting: 2}, counts)
	mu.Lock()
	assert.Zero(t, calls)
	mu.Unlock()

	q.Resume()
	next(t, done)
	next(t, done)
	counts, err = q.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Completed: 2}, counts)
}

func TestQueue_RemoveOnCompleteKeepsNewest(t *testing.T) {
	t.Parallel()

	cfg := fastConfig()
	cfg.RemoveOnComplete = 2
	q := newTestQueue(t, NewMemoryJobStore(), func(context.Context, *Job, ProgressFunc) (any, error) {
		return nil, nil
	}, WithConfig(cfg))
	done := collect(q, EventCompleted)

	q.Pause()
	require.NoError(t, q.Start(context.Background()))
	ctx := context.Background()
	var last *Job
	for range 4 {
		j, err := q.Add(ctx, "sync", nil, JobOptions{})
		require.NoError(t, err)
		last = j
	}
	q.Resume()
	for range 4 {
		next(t, done)
	}

	completed, err := q.Jobs(ctx, StateCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 2)
	ids := []string{completed[0].ID.String(), completed[1].ID.String()}
	assert.Contains(t, ids, last.ID.String())
}

func TestQueue_AddRepeatableIsIdempotent(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, NewMemoryJobStore(), nil)
	ctx := context.Background()

	first, err := q.AddRepeatable(ctx, "sync-issues", 15*time.Minute, nil, JobOptions{})
	require.NoError(t, err)
	assert.Equal(t, "sync-issues:900000", first.Key)

	second, err := q.AddRepeatable(ctx, "sync-issues", 15*time.Minute, map[string]int{"batchSize": 5}, JobOptions{})
	require.NoError(t, err)
	assert.Equal(t, first.NextRunAt, second.NextRunAt, "re-registering keeps the schedule")

	reps, err := q.Repeatables(ctx)
	require.NoError(t, err)
	require.Len(t, reps, 1)
	assert.JSONEq(t, `{"batchSize":5}`, string(reps[0].Data))

	removed, err := q.RemoveRepeatable(ctx, first.Key)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = q.RemoveRepeatable(ctx, first.Key)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = q.AddRepeatable(ctx, "sync-issues", 0, nil, JobOptions{})
	assert.Error(t, err)
}

func TestQueue_RepeatTicksCoalesce(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	q := newTestQueue(t, NewMemoryJobStore(), nil, WithClock(clock))
	ctx := context.Background()

	r, err := q.AddRepeatable(ctx, "sync-users", time.Hour, nil, JobOptions{})
	require.NoError(t, err)

	q.enqueueDue(ctx)
	waiting, err := q.Jobs(ctx, StateWaiting)
	require.NoError(t, err)
	assert.Empty(t, waiting, "not due before one interval")

	now = now.Add(time.Hour)
	q.enqueueDue(ctx)
	waiting, err = q.Jobs(ctx, StateWaiting)
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	assert.Equal(t, r.Key, waiting[0].RepeatKey)
	assert.Equal(t, "sync-users", waiting[0].Name)

	// Three missed intervals with the previous job still waiting.
	now = now.Add(3 * time.Hour)
	q.enqueueDue(ctx)
	waiting, err = q.Jobs(ctx, StateWaiting)
	require.NoError(t, err)
	assert.Len(t, waiting, 1)

	reps, err := q.Repeatables(ctx)
	require.NoError(t, err)
	require.Len(t, reps, 1)
	assert.Equal(t, now.Add(time.Hour), reps[0].NextRunAt)
}

func TestQueue_RepeatableRunsOnSchedule(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, NewMemoryJobStore(), func(context.Context, *Job, ProgressFunc) (any, error) {
		return nil, nil
	})
	done := collect(q, EventCompleted)
	ctx := context.Background()

	r, err := q.AddRepeatable(ctx, "sync-pipelines", 20*time.Millisecond, nil, JobOptions{})
	require.NoError(t, err)
	require.NoError(t, q.Start(ctx))

	for range 2 {
		ev := next(t, done)
		assert.Equal(t, r.Key, ev.Job.RepeatKey)
	}
}

func TestQueue_StalledJobsReportedOnce(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryJobStore()
	cfg := fastConfig()
	cfg.StalledAfter = time.Hour
	q := newTestQueue(t, store, nil, WithConfig(cfg), WithClock(func() time.Time { return now }))
	stalled := collect(q, EventStalled)
	ctx := context.Background()

	started := now.Add(-2 * time.Hour)
	recent := now.Add(-time.Minute)
	long := &Job{ID: uuid.New(), Queue: "test", Name: "slow", State: StateActive, StartedAt: &started}
	short := &Job{ID: uuid.New(), Queue: "test", Name: "fine", State: StateActive, StartedAt: &recent}
	require.NoError(t, store.Save(ctx, long))
	require.NoError(t, store.Save(ctx, short))

	seen := make(map[uuid.UUID]bool)
	q.checkStalled(ctx, seen)
	q.checkStalled(ctx, seen)

	ev := next(t, stalled)
	assert.Equal(t, long.ID, ev.Job.ID)
	select {
	case extra := <-stalled:
		t.Fatalf("unexpected second stalled event for %s", extra.Job.Name)
	default:
	}

	stored, err := store.Get(ctx, long.ID)
	require.NoError(t, err)
	assert.Equal(t, StateActive, stored.State, "stalled jobs keep running")
}

func TestQueue_StartRecoversPreviousProcess(t *testing.T) {
	t.Parallel()

	store := NewMemoryJobStore()
	ctx := context.Background()
	started := time.Now().Add(-time.Minute)
	orphan := &Job{ID: uuid.New(), Queue: "test", Name: "orphan", State: StateActive, Priority: PriorityDefault, StartedAt: &started}
	pending := &Job{ID: uuid.New(), Queue: "test", Name: "pending", State: StateWaiting, Priority: PriorityDefault, MaxAttempts: 3}
	require.NoError(t, store.Save(ctx, orphan))
	require.NoError(t, store.Save(ctx, pending))

	q := newTestQueue(t, store, func(context.Context, *Job, ProgressFunc) (any, error) {
		return "ok", nil
	})
	done := collect(q, EventCompleted)
	require.NoError(t, q.Start(ctx))

	ev := next(t, done)
	assert.Equal(t, pending.ID, ev.Job.ID)

	failed, err := store.Get(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, failed.State)
	assert.Equal(t, ReasonWorkerRestarted, failed.FailedReason)
}

func TestQueue_CloseRequeuesRunningJob(t *testing.T) {
	t.Parallel()

	store := NewMemoryJobStore()
	running := make(chan struct{})
	q := New("test", store, func(ctx context.Context, _ *Job, _ ProgressFunc) (any, error) {
		close(running)
		<-ctx.Done()
		return nil, ctx.Err()
	}, WithConfig(fastConfig()), WithLogger(slog.New(slog.DiscardHandler)))

	ctx := context.Background()
	require.NoError(t, q.Start(ctx))
	job, err := q.Add(ctx, "sync", nil, JobOptions{})
	require.NoError(t, err)

	select {
	case <-running:
	case <-time.After(waitTimeout):
		t.Fatal("job never started")
	}
	require.NoError(t, q.Close())

	stored, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateWaiting, stored.State)
	assert.Equal(t, 1, stored.Attempts)
	assert.Nil(t, stored.StartedAt)

	_, err = q.Add(ctx, "sync", nil, JobOptions{})
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.ErrorIs(t, q.Start(ctx), ErrQueueClosed)
}

func TestQueue_Clean(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryJobStore()
	q := newTestQueue(t, store, nil, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	old := now.Add(-48 * time.Hour)
	fresh := now.Add(-time.Hour)
	for _, j := range []*Job{
		{ID: uuid.New(), Queue: "test", State: StateCompleted, FinishedAt: &old},
		{ID: uuid.New(), Queue: "test", State: StateCompleted, FinishedAt: &fresh},
		{ID: uuid.New(), Queue: "test", State: StateFailed, FinishedAt: &old},
		{ID: uuid.New(), Queue: "other", State: StateCompleted, FinishedAt: &old},
	} {
		require.NoError(t, store.Save(ctx, j))
	}

	n, err := q.Clean(ctx, 24*time.Hour, StateCompleted)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = q.Clean(ctx, 24*time.Hour, StateFailed)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	counts, err := q.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Completed: 1}, counts)

	_, err = q.Clean(ctx, time.Hour, StateWaiting)
	assert.Error(t, err)
}

func TestJob_Decode(t *testing.T) {
	t.Parallel()

	var v struct {
		Scope string `json:"scope"`
	}
	j := &Job{Data: json.RawMessage(`{"scope":"acme"}`)}
	require.NoError(t, j.Decode(&v))
	assert.Equal(t, "acme", v.Scope)

	require.NoError(t, (&Job{}).Decode(&v), "empty data is a no-op")
	assert.Error(t, (&Job{Data: json.RawMessage(`[`)}).Decode(&v))
}
