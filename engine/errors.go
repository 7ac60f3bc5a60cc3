/*
errors.go - Centralized error taxonomy for the settlement engine

PURPOSE:
  All error types in one place. Callers classify with the Is* helpers; the
  api layer maps classes to HTTP statuses.

ERROR CATEGORIES:
  1. Validation errors  - malformed month strings, negative rates; rejected
     before any store access
  2. Conflict errors    - uniqueness violations (duplicate assignment key);
     user-actionable "already registered", never retried automatically
  3. Not-found errors   - referenced assignment/work/rank missing
  4. Persistence errors - store unreachable, transaction failure; the whole
     operation rolls back and is safe to retry

SEE ALSO:
  - store.go:      store implementations translate driver errors into these
  - api/handlers.go: HTTP status mapping
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidMonth is returned for input that is not canonical "YYYY-MM".
	ErrInvalidMonth = errors.New("invalid month")

	// ErrInvalidRate is returned for a negative or non-numeric rate.
	ErrInvalidRate = errors.New("invalid rate")

	// ErrInvalidWork is returned for a work record whose duration does not
	// match its start/end times or is not positive.
	ErrInvalidWork = errors.New("invalid work record")

	// ErrDuplicateAssignment is returned when a non-deleted assignment with
	// the same (client, secretary, rank, month) key already exists.
	ErrDuplicateAssignment = errors.New("assignment already registered")

	// ErrAssignmentNotFound is returned when a referenced assignment is
	// missing or deleted.
	ErrAssignmentNotFound = errors.New("assignment not found")

	// ErrWorkNotFound is returned when a referenced work record is missing.
	ErrWorkNotFound = errors.New("work record not found")

	// ErrRankNotFound is returned when a referenced rank is missing. During
	// settlement this is a data-integrity error that aborts the run.
	ErrRankNotFound = errors.New("rank not found")

	// ErrClientNotFound is returned when a referenced client is missing.
	ErrClientNotFound = errors.New("client not found")

	// ErrSnapshotNotFound is returned when no settlement snapshot exists yet
	// for the requested (subject, month) key.
	ErrSnapshotNotFound = errors.New("settlement snapshot not found")

	// ErrSecretaryNotFound is returned when a referenced secretary is missing.
	ErrSecretaryNotFound = errors.New("secretary not found")

	// ErrPMRankUnset is returned when incentive propagation runs without a
	// sentinel project-management rank registered.
	ErrPMRankUnset = errors.New("project-management rank not registered")

	// ErrPersistence is returned when the store fails; the enclosing
	// transaction has been rolled back and the whole call is retryable.
	ErrPersistence = errors.New("persistence failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MonthFormatError reports input that is not the literal "YYYY-MM" form.
type MonthFormatError struct {
	Input string
}

func (e *MonthFormatError) Error() string {
	return fmt.Sprintf("invalid month %q: want YYYY-MM", e.Input)
}

func (e *MonthFormatError) Unwrap() error { return ErrInvalidMonth }

// DuplicateAssignmentError reports which key collided.
type DuplicateAssignmentError struct {
	Key   ContinuityKey
	Month Month
}

func (e *DuplicateAssignmentError) Error() string {
	return fmt.Sprintf("assignment already registered: client=%s secretary=%s rank=%s month=%s",
		e.Key.ClientID, e.Key.SecretaryID, e.Key.RankID, e.Month)
}

func (e *DuplicateAssignmentError) Unwrap() error { return ErrDuplicateAssignment }

// InvalidTransitionError reports a rejected work-record state transition.
type InvalidTransitionError struct {
	From WorkState
	To   WorkState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid work state transition: %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidWork }

// PersistenceError wraps a store-level failure with the failed operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return ErrPersistence }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if the error is due to invalid caller input,
// detected before any store access.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidMonth) ||
		errors.Is(err, ErrInvalidRate) ||
		errors.Is(err, ErrInvalidWork)
}

// IsConflict returns true if the error is a uniqueness violation the caller
// should surface as "already exists".
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateAssignment)
}

// IsNotFound returns true if the error indicates a missing referenced record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAssignmentNotFound) ||
		errors.Is(err, ErrWorkNotFound) ||
		errors.Is(err, ErrRankNotFound) ||
		errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrSecretaryNotFound) ||
		errors.Is(err, ErrSnapshotNotFound)
}

// IsRetryable returns true if retrying the whole call may succeed. All engine
// writes are idempotent replaces or transactional bulk updates, so any
// rolled-back persistence failure qualifies.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence)
}
