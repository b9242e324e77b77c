// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking,
// a duplicate in-progress handoff packet, or a second runner for the same feature).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates a request failed domain validation.
var ErrValidation = errors.New("validation failed")

// ErrInvalidTransition indicates a feature status change that is not an edge
// in the pipeline transition table.
var ErrInvalidTransition = errors.New("invalid status transition")
