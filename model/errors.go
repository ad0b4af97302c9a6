package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRecord marks a single malformed bank or ledger record.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrConflict is returned when a record is already consumed by a match.
	ErrConflict = errors.New("record already matched")
	// ErrNotFound is returned when an account, statement, run or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned for a run state change that is not allowed.
	ErrInvalidTransition = errors.New("invalid run status transition")
	// ErrComputation marks an unexpected failure inside the matching core.
	ErrComputation = errors.New("matching computation failed")
)

func InvalidRecordError(id, reason string) error {
	return fmt.Errorf("%w, %s: %s", ErrInvalidRecord, id, reason)
}

func ConflictError(kind, id string) error {
	return fmt.Errorf("%w, %s %s", ErrConflict, kind, id)
}

func NotFoundError(kind, id string) error {
	return fmt.Errorf("%w, %s %s", ErrNotFound, kind, id)
}

func InvalidTransitionError(from, to RunStatus) error {
	return fmt.Errorf("%w, %s -> %s", ErrInvalidTransition, from, to)
}

func ComputationError(cause any) error {
	return fmt.Errorf("%w, %v", ErrComputation, cause)
}

// RecordError describes a record skipped during loading or matching.
// Row is the 1-based data row for file input and 0 otherwise.
type RecordError struct {
	RecordID string
	Row      int
	Reason   string
}

func (e RecordError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
	}
	return fmt.Sprintf("record %s: %s", e.RecordID, e.Reason)
}
