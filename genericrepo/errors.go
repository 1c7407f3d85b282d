package genericrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-repository-query/filters"
)

// ValidationError is returned for malformed filter maps, before any I/O.
type ValidationError = filters.ValidationError

// NotFoundError is returned by Get when no live row carries the id.
type NotFoundError struct {
	Table string
	ID    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: no row with id %q", e.Table, e.ID)
}

// AmbiguousResultError is returned by Get when the id matches more than one row.
type AmbiguousResultError struct {
	Table string
	ID    string
	Count int
}

func (e *AmbiguousResultError) Error() string {
	return fmt.Sprintf("%s: id %q matched %d rows", e.Table, e.ID, e.Count)
}

// ConcurrencyConflictError is returned when a versioned update matched no row:
// another writer persisted the entity since it was loaded.
type ConcurrencyConflictError struct {
	Table   string
	ID      string
	Version int64
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("%s: %q was modified concurrently (expected version %d)", e.Table, e.ID, e.Version)
}

// PreconditionError reports a caller contract violation, such as persisting an
// entity this repository never returned or added.
type PreconditionError struct {
	Op     string
	ID     string
	Reason string
}

func (e *PreconditionError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", e.Op, e.ID, e.Reason)
}

// TimeoutError is returned when child mapping exceeds its deadline.
type TimeoutError struct {
	Op      string
	ID      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %q: child mapping exceeded %s", e.Op, e.ID, e.Timeout)
}

// Unwrap lets errors.Is match context.DeadlineExceeded.
func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// Class buckets repository errors for upper layers.
type Class string

const (
	ClassNone     Class = ""
	ClassClient   Class = "client"
	ClassConflict Class = "conflict"
	ClassServer   Class = "server"
)

// Classify maps err to the class an upper layer should report it as.
// Validation, not-found and precondition errors are the caller's; version
// conflicts are retryable by the caller; everything else is ours.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}

	var (
		validation   *ValidationError
		notFound     *NotFoundError
		precondition *PreconditionError
		conflict     *ConcurrencyConflictError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &notFound), errors.As(err, &precondition):
		return ClassClient
	case errors.As(err, &conflict):
		return ClassConflict
	default:
		return ClassServer
	}
}
