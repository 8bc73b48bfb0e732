// Package queue implements a persistent, single-consumer job queue with
// repeatable jobs, retries with exponential backoff, pause and resume, bounded
// job history and stalled-job detection.
//
// Each Queue runs exactly one worker, so jobs of one queue never overlap.
// Jobs and repeatable descriptors live in a JobStore; the paused flag lives in
// memory only.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a job.
type State string

// Job states.
const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Job priorities. Lower values run first; equal priorities run in FIFO order.
const (
	PriorityHigh    = 1
	PriorityDefault = 10
)

// ReasonWorkerRestarted is the failure reason of jobs found active at start.
const ReasonWorkerRestarted = "stalled: worker restarted"

var (
	// ErrQueueClosed is returned by operations on a closed queue.
	ErrQueueClosed = errors.New("queue is closed")
	// ErrJobNotFound is returned when a job does not exist.
	ErrJobNotFound = errors.New("job not found")
)

// Job is one unit of work.
type Job struct {
	ID           uuid.UUID       `json:"id"`
	Queue        string          `json:"queue"`
	Name         string          `json:"name"`
	Data         json.RawMessage `json:"data,omitempty"`
	Priority     int             `json:"priority"`
	Seq          int64           `json:"-"`
	State        State           `json:"state"`
	Attempts     int             `json:"attempts"`
	MaxAttempts  int             `json:"maxAttempts"`
	Progress     int             `json:"progress"`
	ReturnValue  json.RawMessage `json:"returnValue,omitempty"`
	FailedReason string          `json:"failedReason,omitempty"`
	RepeatKey    string          `json:"repeatKey,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	StartedAt    *time.Time      `json:"startedAt,omitempty"`
	FinishedAt   *time.Time      `json:"finishedAt,omitempty"`
}

// Decode unmarshals the job data into v.
func (j *Job) Decode(v any) error {
	if len(j.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(j.Data, v); err != nil {
		return fmt.Errorf("failed to decode data of job %s: %w", j.ID, err)
	}
	return nil
}

func (j *Job) clone() *Job {
	out := *j
	return &out
}

// JobOptions configures one enqueued job.
type JobOptions struct {
	// Priority defaults to PriorityDefault.
	Priority int
	// MaxAttempts overrides the queue default when positive.
	MaxAttempts int
}

// Repeatable describes a job enqueued on a fixed interval.
type Repeatable struct {
	Queue     string          `json:"queue"`
	Key       string          `json:"key"`
	Name      string          `json:"name"`
	Every     time.Duration   `json:"every"`
	Data      json.RawMessage `json:"data,omitempty"`
	Priority  int             `json:"priority"`
	NextRunAt time.Time       `json:"nextRunAt"`
	CreatedAt time.Time       `json:"createdAt"`
}

// RepeatKey returns the key of the repeatable job name running every interval.
func RepeatKey(name string, every time.Duration) string {
	return fmt.Sprintf("%s:%d", name, every.Milliseconds())
}

// Counts are the number of jobs per state.
type Counts struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
