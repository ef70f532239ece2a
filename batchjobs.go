// Package batchjobs orchestrates long-running, rate-limited batches of work
// against an external annotation or collection service.
//
// A submitted job is processed asynchronously: items run in fixed-size
// batches with paced delays between calls, transient failures are retried
// with exponential backoff, and progress is written to a job record that any
// number of pollers can read while the job runs. Finished records are
// garbage-collected by a background sweeper after a retention window.
//
// Basic usage:
//
//	store := batchjobs.NewMemoryStore()
//	orch, _ := batchjobs.New(store, client)
//	defer orch.Shutdown(context.Background())
//
//	id, _ := orch.Submit(ctx, batchjobs.KindAnnotate, items)
//
//	// Poll until the job reaches a terminal state.
//	job, _ := orch.Status(ctx, id)
package batchjobs

import (
	"time"

	"gorm.io/gorm"

	"github.com/curatorhq/batchjobs/pkg/core"
	"github.com/curatorhq/batchjobs/pkg/pacer"
	"github.com/curatorhq/batchjobs/pkg/retry"
	"github.com/curatorhq/batchjobs/pkg/storage"
)

// Type aliases re-exported from pkg for a clean import surface.
type (
	// Job tracks one submitted batch of work items.
	Job = core.Job

	// Status represents the current state of a job.
	Status = core.Status

	// Kind tags a job with the type of work it performs.
	Kind = core.Kind

	// Item is one unit of work within a job.
	Item = core.Item

	// ItemError records one failed item on a job.
	ItemError = core.ItemError

	// Result is the opaque response from the external service for one item.
	Result = core.Result

	// Caller is the external service contract: one blocking call per item.
	Caller = core.Caller

	// CallerFunc adapts a function to the Caller interface.
	CallerFunc = core.CallerFunc

	// Store defines the job record store.
	Store = core.Store

	// Filter narrows List results.
	Filter = core.Filter

	// Stats aggregates job counts per status.
	Stats = core.Stats

	// RetryConfig holds the per-item retry policy.
	RetryConfig = retry.Config

	// MemoryStore is the default process-local job store.
	MemoryStore = storage.MemoryStore

	// GormStore is the persistent GORM-backed job store.
	GormStore = storage.GormStore

	// Sweeper evicts terminal job records past the retention window.
	Sweeper = storage.Sweeper

	// Pacer paces item-level and batch-level calls.
	Pacer = pacer.Pacer

	// NoRetryError indicates an error that should not be retried.
	NoRetryError = core.NoRetryError

	// RetryAfterError indicates an error that should be retried after a delay.
	RetryAfterError = core.RetryAfterError
)

// Status constants
const (
	StatusPending   = core.StatusPending
	StatusRunning   = core.StatusRunning
	StatusCompleted = core.StatusCompleted
	StatusFailed    = core.StatusFailed
	StatusCancelled = core.StatusCancelled
)

// Well-known job kinds
const (
	KindCollect  = core.KindCollect
	KindAnnotate = core.KindAnnotate
)

// Error variables
var (
	ErrJobNotFound  = core.ErrJobNotFound
	ErrJobTerminal  = core.ErrJobTerminal
	ErrNoItems      = core.ErrNoItems
	ErrNilCaller    = core.ErrNilCaller
	ErrInvalidKind  = core.ErrInvalidKind
	ErrShuttingDown = core.ErrShuttingDown
)

// NewMemoryStore creates the default in-memory job store.
func NewMemoryStore() *MemoryStore {
	return storage.NewMemoryStore()
}

// NewGormStore creates a GORM-backed persistent job store.
func NewGormStore(db *gorm.DB) *GormStore {
	return storage.NewGormStore(db)
}

// NewPacer creates a pacer with the given item and batch delays. Share one
// pacer across orchestrators to enforce a global rate limit.
func NewPacer(itemDelay, batchDelay time.Duration) *Pacer {
	return pacer.New(itemDelay, batchDelay)
}

// NoRetry wraps an error to indicate it should not be retried.
func NoRetry(err error) error {
	return core.NoRetry(err)
}

// RetryAfter wraps an error to indicate it should be retried after a delay.
func RetryAfter(d time.Duration, err error) error {
	return core.RetryAfter(d, err)
}
