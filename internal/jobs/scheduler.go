// Package jobs wires the sync drivers to the job queues: one queue and one
// recurring job per entity type, plus the operations to trigger, pause,
// resume, inspect and clean them.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/queue"
	"github.com/glsync/glsync/internal/sync"
)

// DefaultIntervals are the repeat intervals per entity type. Fast-changing
// types repeat more often.
var DefaultIntervals = map[entity.Type]time.Duration{
	entity.TypeIssues:        15 * time.Minute,
	entity.TypeMergeRequests: 15 * time.Minute,
	entity.TypePipelines:     15 * time.Minute,
	entity.TypeProjects:      30 * time.Minute,
	entity.TypeMilestones:    30 * time.Minute,
	entity.TypeNamespaces:    time.Hour,
	entity.TypeUsers:         time.Hour,
}

// JobName returns the name of the sync job of an entity type.
func JobName(t entity.Type) string {
	return "sync-" + string(t)
}

// Scheduler owns the recurring job of one entity type.
type Scheduler struct {
	entityType entity.Type
	queue      *queue.Queue
	every      time.Duration
	defaults   sync.Options
	logger     *slog.Logger
}

// NewScheduler returns a scheduler enqueuing jobs on q every interval with
// the given default options.
func NewScheduler(t entity.Type, q *queue.Queue, every time.Duration, defaults sync.Options, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		entityType: t,
		queue:      q,
		every:      every,
		defaults:   defaults,
		logger:     logger.With("entity_type", t),
	}
}

// Register replaces any repeatable job of this type, whatever its interval,
// with one repeating every configured interval, then enqueues a high priority
// job so the first sync does not wait a full interval. Registering again
// leaves exactly one repeatable.
func (s *Scheduler) Register(ctx context.Context) error {
	name := JobName(s.entityType)

	existing, err := s.queue.Repeatables(ctx)
	if err != nil {
		return fmt.Errorf("failed to list repeatable jobs of %s: %w", s.entityType, err)
	}
	for _, r := range existing {
		if r.Name != name {
			continue
		}
		if _, err := s.queue.RemoveRepeatable(ctx, r.Key); err != nil {
			return fmt.Errorf("failed to remove repeatable job %s: %w", r.Key, err)
		}
	}

	r, err := s.queue.AddRepeatable(ctx, name, s.every, s.defaults, queue.JobOptions{})
	if err != nil {
		return fmt.Errorf("failed to register repeatable job of %s: %w", s.entityType, err)
	}
	job, err := s.queue.Add(ctx, name, s.defaults, queue.JobOptions{Priority: queue.PriorityHigh})
	if err != nil {
		return fmt.Errorf("failed to enqueue initial job of %s: %w", s.entityType, err)
	}

	s.logger.InfoContext(ctx, "Registered sync schedule",
		"key", r.Key,
		"every", s.every,
		"initial_job_id", job.ID)
	return nil
}

// Repeatable returns the registered repeatable descriptor of this type, or
// nil when none is registered.
func (s *Scheduler) Repeatable(ctx context.Context) (*queue.Repeatable, error) {
	reps, err := s.queue.Repeatables(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range reps {
		if r.Name == JobName(s.entityType) {
			return r, nil
		}
	}
	return nil, nil
}
