package sync

import (
	"fmt"
	"time"

	"github.com/glsync/glsync/internal/entity"
)

// DefaultBatchSize is the default discovery page size and progress granularity.
const DefaultBatchSize = 100

// Options controls one sync run.
type Options struct {
	// BatchSize is the discovery page size and progress granularity.
	BatchSize int `json:"batchSize,omitempty"`
	// Scope optionally restricts discovery to one project or group path.
	Scope string `json:"scope,omitempty"`
	// FullSync bypasses the age part of the skip policy.
	FullSync bool `json:"fullSync,omitempty"`
}

// EffectiveBatchSize returns BatchSize or the default.
func (o Options) EffectiveBatchSize() int {
	if o.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return o.BatchSize
}

// ProgressFunc receives run progress as a percentage in [0, 100].
type ProgressFunc func(percent int)

// CategoryResult tallies one category across a run.
type CategoryResult struct {
	Success      int        `json:"success"`
	Failures     int        `json:"failures"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
}

// Result is the outcome of a sync run.
type Result struct {
	EntityType entity.Type                         `json:"entityType"`
	Processed  int                                 `json:"processed"`
	Created    int                                 `json:"created"`
	Updated    int                                 `json:"updated"`
	Skipped    int                                 `json:"skipped"`
	Errored    int                                 `json:"errored"`
	Candidates int                                 `json:"candidates"`
	StartedAt  time.Time                           `json:"startedAt"`
	FinishedAt time.Time                           `json:"finishedAt"`
	Duration   time.Duration                       `json:"duration"`
	Categories map[entity.Category]*CategoryResult `json:"categories"`
}

func newResult(entityType entity.Type, categories []entity.Category, startedAt time.Time) *Result {
	r := &Result{
		EntityType: entityType,
		StartedAt:  startedAt,
		Categories: make(map[entity.Category]*CategoryResult, len(categories)),
	}
	for _, c := range categories {
		r.Categories[c] = &CategoryResult{}
	}
	return r
}

func (r *Result) finish(now time.Time) {
	r.FinishedAt = now
	r.Duration = now.Sub(r.StartedAt)
}

// Stage names the part of a run that failed.
type Stage string

// Run stages.
const (
	StageDiscovery Stage = "discovery"
	StageProcess   Stage = "process"
)

// Error is a run-level failure.
type Error struct {
	Stage      Stage
	EntityType entity.Type
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s sync failed during %s: %v", e.EntityType, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
