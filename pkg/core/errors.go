package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrJobNotFound    = errors.New("batchjobs: job not found")
	ErrJobTerminal    = errors.New("batchjobs: job already in a terminal state")
	ErrNoItems        = errors.New("batchjobs: no items submitted")
	ErrNilCaller      = errors.New("batchjobs: caller is nil")
	ErrInvalidKind    = errors.New("batchjobs: invalid job kind (must be alphanumeric, start with letter)")
	ErrKindTooLong    = errors.New("batchjobs: job kind too long")
	ErrTooManyItems   = errors.New("batchjobs: item count exceeds limit")
	ErrMetadataTooBig = errors.New("batchjobs: metadata exceeds entry limit")
	ErrDuplicateJob   = errors.New("batchjobs: duplicate job id")
	ErrShuttingDown   = errors.New("batchjobs: orchestrator is shutting down")
)

// NoRetryError indicates an error that should not be retried.
type NoRetryError struct {
	Err error
}

func (e *NoRetryError) Error() string {
	return fmt.Sprintf("no retry: %v", e.Err)
}

func (e *NoRetryError) Unwrap() error {
	return e.Err
}

// NoRetry wraps an error to indicate it should not be retried.
func NoRetry(err error) error {
	return &NoRetryError{Err: err}
}

// RetryAfterError indicates an error that should be retried after a delay.
type RetryAfterError struct {
	Err   error
	Delay time.Duration
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("retry after %v: %v", e.Delay, e.Err)
}

func (e *RetryAfterError) Unwrap() error {
	return e.Err
}

// RetryAfter wraps an error to indicate it should be retried after a delay.
func RetryAfter(d time.Duration, err error) error {
	return &RetryAfterError{Err: err, Delay: d}
}
