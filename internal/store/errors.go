package store

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a guarded transition finds the record
	// in a different state than required, usually because a concurrent
	// writer got there first.
	ErrConflict = errors.New("conflicting state")
)
