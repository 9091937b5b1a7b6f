package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrPuzzleNotFound indicates an id that is not part of the catalog.
	ErrPuzzleNotFound = errors.New("puzzle not found")
	// ErrCatalogUnavailable is returned when no catalog could be loaded.
	ErrCatalogUnavailable = errors.New("puzzle catalog unavailable")
	// ErrMirrorClosed is returned when work is queued after the mirror stopped.
	ErrMirrorClosed = errors.New("mirror closed")
)

// ValidationError reports bad registration input. Field names the first violation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// PersistenceError wraps a local storage read, parse or write failure.
type PersistenceError struct {
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("local storage %q: %v", e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// RemoteSyncError wraps a failed remote mirror or fetch.
type RemoteSyncError struct {
	Op  string
	Err error
}

func (e *RemoteSyncError) Error() string {
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *RemoteSyncError) Unwrap() error { return e.Err }
