package apperrors

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMalformedItem marks a raw feed item that carries no usable
	// identity. Such items are dropped before queueing.
	ErrMalformedItem = errors.New("malformed item: no identity can be derived")

	// ErrClaimConflict is returned when another worker won the race for a
	// pending article. It is not a failure; the caller retries dequeue.
	ErrClaimConflict = errors.New("article claim lost to another worker")
)

// ErrorKind separates retry-eligible failures from terminal ones.
type ErrorKind string

const (
	KindTransient  ErrorKind = "transient"
	KindPersistent ErrorKind = "persistent"
)

// ProcessingError is a downstream (summarize/tag) or pipeline failure with a
// retry classification.
type ProcessingError struct {
	Kind   ErrorKind
	Stage  string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ProcessingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s error: %s: %v", e.Stage, e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s error: %s", e.Stage, e.Kind, e.Reason)
}

// Unwrap exposes the wrapped cause.
func (e *ProcessingError) Unwrap() error { return e.Err }

// NewTransient builds a retry-eligible processing error.
func NewTransient(stage, reason string, err error) *ProcessingError {
	return &ProcessingError{Kind: KindTransient, Stage: stage, Reason: reason, Err: err}
}

// NewPersistent builds a terminal processing error.
func NewPersistent(stage, reason string, err error) *ProcessingError {
	return &ProcessingError{Kind: KindPersistent, Stage: stage, Reason: reason, Err: err}
}

// IsTransient reports whether err is retry-eligible. Unclassified errors are
// treated as transient so an unknown infrastructure hiccup gets retried
// instead of burning the article.
func IsTransient(err error) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Kind == KindTransient
	}
	return true
}

// IsPersistent reports whether err is terminal for the current article.
func IsPersistent(err error) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Kind == KindPersistent
	}
	return false
}

// FetchError is a feed-level fetch failure. Persistent failures accumulate
// toward feed deactivation.
type FetchError struct {
	Kind       ErrorKind
	FeedURL    string
	RetryAfter time.Duration
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed (%s): %v", e.FeedURL, e.Kind, e.Err)
}

// Unwrap exposes the wrapped cause.
func (e *FetchError) Unwrap() error { return e.Err }

// CounterDriftError reports a mismatch between a tag's stored usage counter
// and the recomputed live association count. It is logged and auto-corrected,
// never silently ignored.
type CounterDriftError struct {
	TagID    uint
	Stored   int64
	Computed int64
}

// Error implements the error interface.
func (e *CounterDriftError) Error() string {
	return fmt.Sprintf("tag %d usage counter drift: stored=%d computed=%d", e.TagID, e.Stored, e.Computed)
}
