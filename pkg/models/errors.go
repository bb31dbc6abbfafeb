package models

import "errors"

// Shared error taxonomy for the control plane. Components wrap these with
// detail; HTTP handlers map them to status codes with errors.Is/As.
var (
	// ErrNotFound is returned when a stream, node, snapshot or session
	// id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for bad input. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrAlreadyInProgress is returned by concurrency guards when an
	// exclusive operation is already in flight.
	ErrAlreadyInProgress = errors.New("operation already in progress")

	// ErrUnsupportedProtocol is returned when a session kick names a
	// protocol the coordinator cannot dispatch.
	ErrUnsupportedProtocol = errors.New("unsupported protocol")

	// ErrDatabase is returned when a database operation fails.
	ErrDatabase = errors.New("database error")
)

// NodeUnreachableError indicates a node could not be reached over its
// control protocol. Transient: remediation retries it within its bounded
// policy, everything else surfaces it.
type NodeUnreachableError struct {
	NodeID int64
	Err    error
}

func (e NodeUnreachableError) Error() string {
	return "node unreachable"
}

func (e NodeUnreachableError) Unwrap() error {
	return e.Err
}
