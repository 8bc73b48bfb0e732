package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/glsync/glsync/internal/otel"
)

// Start fails the jobs a previous process left active, then starts the
// worker, the repeat loop and the stall monitor in the background. Jobs left
// waiting are picked up by the worker. Starting a started queue is a no-op.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if q.started {
		q.mu.Unlock()
		return nil
	}
	q.started = true
	q.mu.Unlock()

	if err := q.recoverActive(ctx); err != nil {
		q.mu.Lock()
		q.started = false
		q.mu.Unlock()
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.wg.Add(3)
	go q.work(runCtx)
	go q.repeat(runCtx)
	go q.monitorStalls(runCtx)

	q.logger.InfoContext(ctx, "Queue started",
		"max_attempts", q.cfg.MaxAttempts,
		"backoff_base", q.cfg.BackoffBase,
		"stalled_after", q.cfg.StalledAfter)
	return nil
}

// Close stops the background loops and waits for them. A job interrupted by
// Close goes back to waiting and keeps its attempt count.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	cancel := q.cancel
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	q.wg.Wait()
	q.logger.Info("Queue closed")
	return nil
}

// recoverActive fails jobs found active: their worker is gone.
func (q *Queue) recoverActive(ctx context.Context) error {
	active, err := q.store.List(ctx, q.name, StateActive)
	if err != nil {
		return fmt.Errorf("failed to load active jobs of %s: %w", q.name, err)
	}
	for _, job := range active {
		finished := q.now()
		job.State = StateFailed
		job.FailedReason = ReasonWorkerRestarted
		job.FinishedAt = &finished
		if err := q.store.Save(ctx, job); err != nil {
			return fmt.Errorf("failed to recover job %s: %w", job.ID, err)
		}
		q.logger.WarnContext(ctx, "Failed job left active by a previous worker", "job_id", job.ID, "job_name", job.Name)
		q.emit(ctx, Event{Type: EventFailed, Job: job, Err: errors.New(ReasonWorkerRestarted)})
	}

	counts, err := q.store.Counts(ctx, q.name)
	if err != nil {
		return fmt.Errorf("failed to count jobs of %s: %w", q.name, err)
	}
	if counts.Waiting > 0 {
		q.logger.InfoContext(ctx, "Resuming waiting jobs", "waiting", counts.Waiting)
	}
	return nil
}

func (q *Queue) work(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()

	for {
		for !q.paused.Load() && ctx.Err() == nil && q.runNext(ctx) {
		}
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		case <-ticker.C:
		}
	}
}

// runNext runs the next waiting job and reports whether there was one.
func (q *Queue) runNext(ctx context.Context) bool {
	job, err := q.store.Claim(ctx, q.name, q.now())
	if err != nil {
		if ctx.Err() == nil {
			q.logger.ErrorContext(ctx, "Failed to claim next job", "error", err)
		}
		return false
	}
	if job == nil {
		return false
	}
	q.execute(ctx, job)
	return true
}

func (q *Queue) execute(ctx context.Context, job *Job) {
	ctx, span := otel.StartSpan(ctx, q.tracer, "queue.Process",
		trace.WithAttributes(
			otel.AttrQueue.String(q.name),
			otel.AttrJobID.String(job.ID.String()),
		),
	)
	defer span.End()

	logger := q.logger.With("job_id", job.ID, "job_name", job.Name)
	logger.InfoContext(ctx, "Job started", "priority", job.Priority, "attempts", job.Attempts)

	progress := func(percent int) {
		job.Progress = min(max(percent, 0), 100)
		if err := q.store.Save(ctx, job); err != nil {
			logger.WarnContext(ctx, "Failed to save job progress", "error", err)
		}
		q.emit(ctx, Event{Type: EventProgress, Job: job})
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval: q.cfg.BackoffBase,
		Multiplier:      2,
		MaxInterval:     q.cfg.BackoffMax,
	}
	b.Reset()

	value, err := backoff.Retry(ctx,
		func() (any, error) {
			job.Attempts++
			if err := q.store.Save(ctx, job); err != nil {
				logger.WarnContext(ctx, "Failed to save job attempt", "error", err)
			}
			return q.process(ctx, job, progress)
		},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(max(job.MaxAttempts-job.Attempts, 1))),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.WarnContext(ctx, "Job attempt failed, retrying",
				"attempt", job.Attempts,
				"max_attempts", job.MaxAttempts,
				"retry_in", next,
				"error", err)
			q.emit(ctx, Event{Type: EventRetrying, Job: job, Err: err, Delay: next})
		}),
	)

	if ctx.Err() != nil {
		q.requeue(context.WithoutCancel(ctx), job)
		return
	}

	finished := q.now()
	job.FinishedAt = &finished
	if err != nil {
		job.State = StateFailed
		job.FailedReason = err.Error()
		otel.RecordError(span, err)
		logger.ErrorContext(ctx, "Job failed", "attempts", job.Attempts, "error", err)
		q.finish(ctx, job, Event{Type: EventFailed, Job: job, Err: err}, q.cfg.RemoveOnFail)
		return
	}

	raw, encErr := encode(value)
	if encErr != nil {
		logger.WarnContext(ctx, "Dropping job return value", "error", encErr)
	}
	job.State = StateCompleted
	job.Progress = 100
	job.ReturnValue = raw
	logger.InfoContext(ctx, "Job completed",
		"attempts", job.Attempts,
		"duration", finished.Sub(*job.StartedAt))
	q.finish(ctx, job, Event{Type: EventCompleted, Job: job}, q.cfg.RemoveOnComplete)
}

func (q *Queue) finish(ctx context.Context, job *Job, ev Event, keep int) {
	if err := q.store.Save(ctx, job); err != nil {
		q.logger.ErrorContext(ctx, "Failed to save finished job", "job_id", job.ID, "error", err)
	}
	if keep >= 0 {
		n, err := q.store.Trim(ctx, q.name, job.State, keep)
		switch {
		case err != nil:
			q.logger.WarnContext(ctx, "Failed to trim job history", "state", job.State, "error", err)
		case n > 0:
			q.logger.DebugContext(ctx, "Trimmed job history", "state", job.State, "removed", n, "keep", keep)
		}
	}
	q.emit(ctx, ev)
}

func (q *Queue) requeue(ctx context.Context, job *Job) {
	job.State = StateWaiting
	job.StartedAt = nil
	if err := q.store.Save(ctx, job); err != nil {
		q.logger.ErrorContext(ctx, "Failed to requeue interrupted job", "job_id", job.ID, "error", err)
		return
	}
	q.logger.InfoContext(ctx, "Job interrupted, requeued", "job_id", job.ID, "attempts", job.Attempts)
}

func (q *Queue) repeat(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()

	for {
		q.enqueueDue(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// enqueueDue enqueues one job per due repeatable. A repeatable whose previous
// job is still waiting is coalesced: no second job is added.
func (q *Queue) enqueueDue(ctx context.Context) {
	q.repeatMu.Lock()
	defer q.repeatMu.Unlock()

	reps, err := q.store.Repeatables(ctx, q.name)
	if err != nil {
		if ctx.Err() == nil {
			q.logger.ErrorContext(ctx, "Failed to load repeatable jobs", "error", err)
		}
		return
	}

	now := q.now()
	var waiting []*Job
	loaded := false
	for _, r := range reps {
		if now.Before(r.NextRunAt) {
			continue
		}
		missed := now.Sub(r.NextRunAt) / r.Every
		r.NextRunAt = r.NextRunAt.Add((missed + 1) * r.Every)

		if !loaded {
			if waiting, err = q.store.List(ctx, q.name, StateWaiting); err != nil {
				q.logger.ErrorContext(ctx, "Failed to load waiting jobs", "error", err)
				return
			}
			loaded = true
		}

		if hasRepeatJob(waiting, r.Key) {
			q.logger.DebugContext(ctx, "Repeat tick coalesced with waiting job", "key", r.Key)
		} else {
			job := q.newJob(r.Name, r.Data, r.Priority, 0, r.Key)
			if err := q.store.Save(ctx, job); err != nil {
				q.logger.ErrorContext(ctx, "Failed to enqueue repeat job", "key", r.Key, "error", err)
				continue
			}
			waiting = append(waiting, job)
			q.notify()
		}

		if err := q.store.SaveRepeatable(ctx, r); err != nil {
			q.logger.ErrorContext(ctx, "Failed to reschedule repeatable job", "key", r.Key, "error", err)
		}
	}
}

func hasRepeatJob(jobs []*Job, key string) bool {
	for _, j := range jobs {
		if j.RepeatKey == key {
			return true
		}
	}
	return false
}

func (q *Queue) monitorStalls(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.cfg.StalledCheckInterval)
	defer ticker.Stop()

	reported := make(map[uuid.UUID]bool)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.checkStalled(ctx, reported)
		}
	}
}

// checkStalled reports every job active for longer than StalledAfter once.
// Stalled jobs are left running.
func (q *Queue) checkStalled(ctx context.Context, reported map[uuid.UUID]bool) {
	active, err := q.store.List(ctx, q.name, StateActive)
	if err != nil {
		if ctx.Err() == nil {
			q.logger.ErrorContext(ctx, "Failed to load active jobs", "error", err)
		}
		return
	}

	now := q.now()
	current := make(map[uuid.UUID]bool, len(active))
	for _, job := range active {
		current[job.ID] = true
		if reported[job.ID] || job.StartedAt == nil || now.Sub(*job.StartedAt) <= q.cfg.StalledAfter {
			continue
		}
		reported[job.ID] = true
		q.logger.WarnContext(ctx, "Job stalled",
			"job_id", job.ID,
			"job_name", job.Name,
			"running_for", now.Sub(*job.StartedAt),
			"stalled_after", q.cfg.StalledAfter)
		q.emit(ctx, Event{Type: EventStalled, Job: job})
	}
	for id := range reported {
		if !current[id] {
			delete(reported, id)
		}
	}
}
