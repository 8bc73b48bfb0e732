package queue

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStore persists jobs and repeatable descriptors of any number of queues.
type JobStore interface {
	// Save inserts or updates a job keyed by its ID.
	Save(ctx context.Context, job *Job) error
	// Get returns the job or ErrJobNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Job, error)
	// Claim moves the next waiting job of the queue, by priority then
	// sequence, to the active state and returns it. It returns nil when no
	// job is waiting.
	Claim(ctx context.Context, queue string, now time.Time) (*Job, error)
	// List returns the jobs of the queue in state, ordered by priority then
	// sequence.
	List(ctx context.Context, queue string, state State) ([]*Job, error)
	// Counts returns the number of jobs per state.
	Counts(ctx context.Context, queue string) (Counts, error)
	// Clean deletes jobs in state that finished before the given time and
	// returns how many were removed.
	Clean(ctx context.Context, queue string, state State, before time.Time) (int, error)
	// Trim keeps the newest keep jobs in state and deletes the rest.
	Trim(ctx context.Context, queue string, state State, keep int) (int, error)

	// SaveRepeatable inserts or updates a descriptor keyed by queue and key.
	SaveRepeatable(ctx context.Context, r *Repeatable) error
	// DeleteRepeatable removes a descriptor and reports whether it existed.
	DeleteRepeatable(ctx context.Context, queue, key string) (bool, error)
	// Repeatables returns the descriptors of the queue ordered by key.
	Repeatables(ctx context.Context, queue string) ([]*Repeatable, error)
}

// MemoryJobStore is a JobStore held in process memory.
type MemoryJobStore struct {
	mu          sync.Mutex
	jobs        map[uuid.UUID]*Job
	repeatables map[string]map[string]*Repeatable
}

var _ JobStore = (*MemoryJobStore)(nil)

// NewMemoryJobStore returns an empty in-memory job store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs:        make(map[uuid.UUID]*Job),
		repeatables: make(map[string]map[string]*Repeatable),
	}
}

// Save implements JobStore.
func (s *MemoryJobStore) Save(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.clone()
	return nil
}

// Get implements JobStore.
func (s *MemoryJobStore) Get(_ context.Context, id uuid.UUID) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.clone(), nil
}

// Claim implements JobStore.
func (s *MemoryJobStore) Claim(_ context.Context, queue string, now time.Time) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	waiting := s.filter(queue, StateWaiting)
	if len(waiting) == 0 {
		return nil, nil
	}
	next := waiting[0]
	next.State = StateActive
	started := now
	next.StartedAt = &started
	return next.clone(), nil
}

// List implements JobStore.
func (s *MemoryJobStore) List(_ context.Context, queue string, state State) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := s.filter(queue, state)
	out := make([]*Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.clone())
	}
	return out, nil
}

// Counts implements JobStore.
func (s *MemoryJobStore) Counts(_ context.Context, queue string) (Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var c Counts
	for _, j := range s.jobs {
		if j.Queue != queue {
			continue
		}
		switch j.State {
		case StateWaiting:
			c.Waiting++
		case StateActive:
			c.Active++
		case StateCompleted:
			c.Completed++
		case StateFailed:
			c.Failed++
		}
	}
	return c, nil
}

// Clean implements JobStore.
func (s *MemoryJobStore) Clean(_ context.Context, queue string, state State, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, j := range s.filter(queue, state) {
		if j.FinishedAt != nil && j.FinishedAt.Before(before) {
			delete(s.jobs, j.ID)
			removed++
		}
	}
	return removed, nil
}

// Trim implements JobStore.
func (s *MemoryJobStore) Trim(_ context.Context, queue string, state State, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := s.filter(queue, state)
	if len(jobs) <= keep {
		return 0, nil
	}
	slices.SortFunc(jobs, newestFirst)
	for _, j := range jobs[keep:] {
		delete(s.jobs, j.ID)
	}
	return len(jobs) - keep, nil
}

// SaveRepeatable implements JobStore.
func (s *MemoryJobStore) SaveRepeatable(_ context.Context, r *Repeatable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey, ok := s.repeatables[r.Queue]
	if !ok {
		byKey = make(map[string]*Repeatable)
		s.repeatables[r.Queue] = byKey
	}
	cp := *r
	byKey[r.Key] = &cp
	return nil
}

// DeleteRepeatable implements JobStore.
func (s *MemoryJobStore) DeleteRepeatable(_ context.Context, queue, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.repeatables[queue][key]; !ok {
		return false, nil
	}
	delete(s.repeatables[queue], key)
	return true, nil
}

// Repeatables implements JobStore.
func (s *MemoryJobStore) Repeatables(_ context.Context, queue string) ([]*Repeatable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Repeatable, 0, len(s.repeatables[queue]))
	for _, r := range s.repeatables[queue] {
		cp := *r
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *Repeatable) int { return cmp.Compare(a.Key, b.Key) })
	return out, nil
}

// filter returns the stored jobs of queue in state, in run order.
// The caller holds s.mu.
func (s *MemoryJobStore) filter(queue string, state State) []*Job {
	var out []*Job
	for _, j := range s.jobs {
		if j.Queue == queue && j.State == state {
			out = append(out, j)
		}
	}
	slices.SortFunc(out, runOrder)
	return out
}

func runOrder(a, b *Job) int {
	return cmp.Or(cmp.Compare(a.Priority, b.Priority), cmp.Compare(a.Seq, b.Seq))
}

func newestFirst(a, b *Job) int {
	var at, bt time.Time
	if a.FinishedAt != nil {
		at = *a.FinishedAt
	}
	if b.FinishedAt != nil {
		bt = *b.FinishedAt
	}
	return cmp.Or(bt.Compare(at), cmp.Compare(b.Seq, a.Seq))
}
