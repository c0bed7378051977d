package store

import "errors"

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when no record with the requested id exists.
	// Callers must not conflate it with a zero-value record.
	ErrNotFound = errors.New("record not found")

	// ErrPathIsDirectory is returned when a store backing path collides with
	// a directory. This is a configuration error, never worked around.
	ErrPathIsDirectory = errors.New("store path is a directory")
)
