package storage

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/curatorhq/batchjobs/pkg/core"
)

// record pairs a job with its own lock so mutating one job never blocks
// readers of another. The store-level RWMutex only guards the map itself.
type record struct {
	mu  sync.Mutex
	job *core.Job
}

// MemoryStore is the default process-local job store.
//
// Jobs are not durable across restarts; a caller needing an audit trail
// should read results before they are swept.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*record
	active  atomic.Int64
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*record)}
}

// Create stores a new job record.
func (s *MemoryStore) Create(_ context.Context, job *core.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[job.ID]; ok {
		return core.ErrDuplicateJob
	}
	s.records[job.ID] = &record{job: job.Clone()}
	if !job.Status.Terminal() {
		s.active.Add(1)
	}
	return nil
}

// Get returns a snapshot of the job.
func (s *MemoryStore) Get(_ context.Context, id string) (*core.Job, error) {
	rec, ok := s.lookup(id)
	if !ok {
		return nil, core.ErrJobNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.job.Clone(), nil
}

// List returns snapshots of all jobs matching the filter, newest first.
func (s *MemoryStore) List(_ context.Context, filter core.Filter) ([]*core.Job, error) {
	s.mu.RLock()
	recs := make([]*record, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	jobs := make([]*core.Job, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		if filter.Match(rec.job) {
			jobs = append(jobs, rec.job.Clone())
		}
		rec.mu.Unlock()
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// Update applies fn atomically and returns a snapshot of the result. The
// active counter tracks terminal transitions so ActiveCount stays O(1).
func (s *MemoryStore) Update(_ context.Context, id string, fn func(*core.Job)) (*core.Job, error) {
	rec, ok := s.lookup(id)
	if !ok {
		return nil, core.ErrJobNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	wasTerminal := rec.job.Status.Terminal()
	fn(rec.job)
	rec.job.UpdatedAt = time.Now()
	if !wasTerminal && rec.job.Status.Terminal() {
		s.active.Add(-1)
	}
	return rec.job.Clone(), nil
}

// Delete removes the record.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return core.ErrJobNotFound
	}
	delete(s.records, id)

	rec.mu.Lock()
	if !rec.job.Status.Terminal() {
		s.active.Add(-1)
	}
	rec.mu.Unlock()
	return nil
}

// ActiveCount returns the number of pending or running jobs.
func (s *MemoryStore) ActiveCount(_ context.Context) (int, error) {
	return int(s.active.Load()), nil
}

// Stats returns per-status job counts.
func (s *MemoryStore) Stats(ctx context.Context) (core.Stats, error) {
	jobs, err := s.List(ctx, core.Filter{})
	if err != nil {
		return core.Stats{}, err
	}

	var stats core.Stats
	for _, j := range jobs {
		switch j.Status {
		case core.StatusPending:
			stats.Pending++
		case core.StatusRunning:
			stats.Running++
		case core.StatusCompleted:
			stats.Completed++
		case core.StatusFailed:
			stats.Failed++
		case core.StatusCancelled:
			stats.Cancelled++
		}
	}
	stats.Active = s.active.Load() > 0
	return stats, nil
}

func (s *MemoryStore) lookup(id string) (*record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}
