package notes

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when an operation requires a user and none is signed in.
	ErrUnauthenticated = errors.New("must be logged in")

	// ErrRemoteUnavailable is returned when the remote store does not answer in time.
	ErrRemoteUnavailable = errors.New("remote store unavailable")
)

// StoreError reports a failed remote store call.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// ValidationError reports input rejected before any remote call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
