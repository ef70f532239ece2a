// Package core provides the domain models and interfaces for the batchjobs package.
package core

import (
	"time"
)

// Status represents the current state of a batch job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled" // Terminated at a checkpoint before completion
)

// Terminal reports whether no further status transition is possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Kind tags a job with the type of work it performs. The orchestrator treats
// it as opaque; it exists so callers can filter dashboards by work type.
type Kind string

// Well-known job kinds.
const (
	KindCollect  Kind = "collect"
	KindAnnotate Kind = "annotate"
)

// DefaultErrorCap is the maximum number of item errors retained on a job.
const DefaultErrorCap = 10

// ItemError records one failed item on a job.
type ItemError struct {
	Item      string    `json:"item"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Job tracks one submitted batch of work items.
//
// Counters are monotone: ProcessedItems == SuccessfulItems + FailedItems and
// never exceeds TotalItems. Errors is a bounded FIFO; when full, appending
// evicts the oldest entry so the most recent failures survive.
type Job struct {
	ID              string         `json:"id"`
	Kind            Kind           `json:"kind"`
	Status          Status         `json:"status"`
	TotalItems      int            `json:"total_items"`
	ProcessedItems  int            `json:"processed_items"`
	SuccessfulItems int            `json:"successful_items"`
	FailedItems     int            `json:"failed_items"`
	Errors          []ItemError    `json:"errors,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	CancelRequested bool           `json:"cancel_requested"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// RecordError appends an item error, evicting the oldest entries once cap is
// reached. A cap below one falls back to DefaultErrorCap.
func (j *Job) RecordError(item, message string, cap int) {
	if cap < 1 {
		cap = DefaultErrorCap
	}
	entry := ItemError{Item: item, Message: message, Timestamp: time.Now()}
	j.Errors = append(j.Errors, entry)
	if len(j.Errors) > cap {
		j.Errors = j.Errors[len(j.Errors)-cap:]
	}
}

// Clone returns a deep copy safe to hand to concurrent readers.
func (j *Job) Clone() *Job {
	cp := *j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	if j.Errors != nil {
		cp.Errors = make([]ItemError, len(j.Errors))
		copy(cp.Errors, j.Errors)
	}
	if j.Metadata != nil {
		cp.Metadata = make(map[string]any, len(j.Metadata))
		for k, v := range j.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// Item is one unit of work within a job, e.g. one image to annotate.
// Payload is opaque to the orchestrator and passed through to the Caller.
type Item struct {
	ID      string `json:"id"`
	Payload any    `json:"payload,omitempty"`
}

// Result is the opaque response from the external service for one item.
type Result []byte

// Stats aggregates job counts per status for dashboard polling.
type Stats struct {
	Pending   int  `json:"pending"`
	Running   int  `json:"running"`
	Completed int  `json:"completed"`
	Failed    int  `json:"failed"`
	Cancelled int  `json:"cancelled"`
	Active    bool `json:"active"`
}
