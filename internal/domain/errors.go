package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by state stores for identities never recorded.
	ErrNotFound = errors.New("state record not found")
	// ErrStaleReference is returned by sinks when the referenced message is gone.
	ErrStaleReference = errors.New("message reference is stale")
	// ErrRunInProgress is returned when a reconciliation run is already active.
	ErrRunInProgress = errors.New("reconciliation already in progress")
)

// FetchError aborts a run before any store or sink activity.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch announcements: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// SinkError is a failed create or update, isolated to one identity.
type SinkError struct {
	Op  string
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s: %v", e.Op, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// Stale reports whether the sink rejected an update because the message no longer exists.
func (e *SinkError) Stale() bool {
	return errors.Is(e.Err, ErrStaleReference)
}

// StoreError is a failed get or put, isolated to one identity.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
