package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched (via errors.Is) by every NotFoundError.
var ErrNotFound = errors.New("not found")

// ErrInvalidReference is returned when a resource reference cannot be parsed.
var ErrInvalidReference = errors.New("invalid resource reference")

// ErrInvalidExecution is returned when an execution cannot be persisted as given.
var ErrInvalidExecution = errors.New("invalid execution")

// NotFoundError reports a missing entity of a given kind.
type NotFoundError struct {
	Kind string // "execution", "action", "runner", ...
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

// Is makes errors.Is(err, ErrNotFound) true for any NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFound creates a NotFoundError.
func NewNotFound(kind, key string) *NotFoundError {
	return &NotFoundError{Kind: kind, Key: key}
}

// IsNotFound reports whether err (or anything it wraps) is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
