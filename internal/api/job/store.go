// Package job tracks asynchronous backtest and sweep jobs.
package job

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/tradesim/internal/core"
)

// Status represents job status.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Done reports whether the job has finished.
func (s Status) Done() bool {
	return s == StatusComplete || s == StatusFailed
}

// Job represents an async job.
type Job struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Status    Status      `json:"status"`
	Progress  int         `json:"progress"`
	Result    any         `json:"result,omitempty"`
	Error     *core.Error `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Store manages async jobs in memory. Finished jobs expire after ttl. Once
// maxSize is reached the oldest finished job is evicted, or the oldest job
// of all when none has finished.
type Store struct {
	jobs    map[string]*Job
	order   []string // Track insertion order for eviction
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
}

// NewStore creates a new job store.
func NewStore(maxSize int, ttl time.Duration) *Store {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Store{
		jobs:    make(map[string]*Job),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create creates a new job and returns a copy of it.
func (s *Store) Create(jobType string) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)

	job := &Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if len(s.jobs) >= s.maxSize {
		s.evictLocked()
	}

	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)

	return *job
}

// Get retrieves a job by ID.
func (s *Store) Get(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok || s.expired(job, s.now()) {
		return Job{}, core.Errorf(core.ErrNotFound, "job %s", id)
	}
	return *job, nil
}

// Update modifies a job using an update function.
func (s *Store) Update(id string, fn func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return core.Errorf(core.ErrNotFound, "job %s", id)
	}

	fn(job)
	job.UpdatedAt = s.now()
	return nil
}

// List returns live jobs, oldest first.
func (s *Store) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	result := make([]Job, 0, len(s.jobs))
	for _, id := range s.order {
		if job := s.jobs[id]; !s.expired(job, now) {
			result = append(result, *job)
		}
	}
	return result
}

// Active counts pending and running jobs of jobType.
func (s *Store) Active(jobType string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, job := range s.jobs {
		if job.Type == jobType && !job.Status.Done() {
			n++
		}
	}
	return n
}

func (s *Store) expired(job *Job, now time.Time) bool {
	return s.ttl > 0 && job.Status.Done() && now.Sub(job.UpdatedAt) > s.ttl
}

func (s *Store) pruneLocked(now time.Time) {
	kept := s.order[:0]
	for _, id := range s.order {
		if job := s.jobs[id]; s.expired(job, now) {
			delete(s.jobs, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

func (s *Store) evictLocked() {
	if len(s.order) == 0 {
		return
	}
	victim := 0
	for i, id := range s.order {
		if s.jobs[id].Status.Done() {
			victim = i
			break
		}
	}
	delete(s.jobs, s.order[victim])
	s.order = append(s.order[:victim], s.order[victim+1:]...)
}
