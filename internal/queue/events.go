package queue

import (
	"context"
	"time"
)

// EventType names a job lifecycle event.
type EventType string

// Job lifecycle events.
const (
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventStalled   EventType = "stalled"
	EventRetrying  EventType = "retrying"
	EventProgress  EventType = "progress"
)

// Event is delivered to listeners. Job is a snapshot taken when the event
// fired.
type Event struct {
	Type EventType
	Job  *Job
	// Err is the attempt error of failed and retrying events.
	Err error
	// Delay is the wait before the next attempt of a retrying event.
	Delay time.Duration
}

// Listener receives queue events. Listeners run synchronously on the worker
// or the stall monitor and must not block.
type Listener func(Event)

// On registers a listener for every event of the queue.
func (q *Queue) On(l Listener) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.listeners = append(q.listeners, l)
}

func (q *Queue) emit(ctx context.Context, ev Event) {
	q.metrics.RecordJobEvent(ctx, q.name, string(ev.Type))

	q.mu.Lock()
	listeners := append([]Listener(nil), q.listeners...)
	q.mu.Unlock()

	ev.Job = ev.Job.clone()
	for _, l := range listeners {
		l(ev)
	}
}
