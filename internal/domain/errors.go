package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInFlight      = errors.New("transaction already in flight")
	ErrLockHeld      = errors.New("lock already held")
	ErrStaleSession  = errors.New("wallet session is stale")
	ErrReverted      = errors.New("transaction reverted")
	ErrNotTracking   = errors.New("flow is no longer tracked")
	ErrContextDone   = errors.New("context cancelled")
)

// ValidationError reports client-side form constraint violations. It is never
// a transaction error: it blocks submission before any chain call is made.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns a ValidationError holding a single field message.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// Add records msg for field. The first message per field wins.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// Empty reports whether no field messages were recorded.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// OrNil returns e when it holds messages and nil otherwise, so callers can
// build one up and return it unconditionally.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
