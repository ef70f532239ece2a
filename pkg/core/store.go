package core

import (
	"context"
)

// Filter narrows List results. Nil fields match everything.
type Filter struct {
	Status *Status
	Kind   *Kind
}

// Match reports whether the job passes the filter.
func (f Filter) Match(j *Job) bool {
	if f.Status != nil && j.Status != *f.Status {
		return false
	}
	if f.Kind != nil && j.Kind != *f.Kind {
		return false
	}
	return true
}

// StatusFilter builds a Filter matching one status.
func StatusFilter(s Status) Filter {
	return Filter{Status: &s}
}

// Store defines the job record store.
//
// Implementations must guarantee that Update is an atomic read-modify-write
// with respect to concurrent Get/List/Delete calls, and that Get/List return
// snapshots that never expose a partially applied mutation.
type Store interface {
	// Create stores a new job record. Fails with ErrDuplicateJob if the id
	// is already present.
	Create(ctx context.Context, job *Job) error

	// Get returns a snapshot of the job, or ErrJobNotFound.
	Get(ctx context.Context, id string) (*Job, error)

	// List returns snapshots of all jobs matching the filter, newest first.
	List(ctx context.Context, filter Filter) ([]*Job, error)

	// Update applies fn to the stored record atomically and returns a
	// snapshot of the result, or ErrJobNotFound.
	Update(ctx context.Context, id string, fn func(*Job)) (*Job, error)

	// Delete removes the record, or returns ErrJobNotFound.
	Delete(ctx context.Context, id string) error

	// ActiveCount returns the number of pending or running jobs. It must
	// cost O(active jobs), not O(all stored jobs), for in-memory stores.
	ActiveCount(ctx context.Context) (int, error)

	// Stats returns per-status job counts.
	Stats(ctx context.Context) (Stats, error)
}

// Caller is the external annotation/collection service contract: one
// blocking call per item. Errors are opaque to the orchestrator except for
// the retryable/terminal classification applied by the retry executor.
type Caller interface {
	Call(ctx context.Context, item Item) (Result, error)
}

// CallerFunc adapts a function to the Caller interface.
type CallerFunc func(ctx context.Context, item Item) (Result, error)

func (f CallerFunc) Call(ctx context.Context, item Item) (Result, error) {
	return f(ctx, item)
}
