/*
store.go - Persistence interfaces for the settlement engine

PURPOSE:
  Defines the contract between the engine components and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  AssignmentStore: assignment rows, presence sets, incentive bulk update
  WorkStore:       work-record rows
  SnapshotStore:   settlement snapshots (replace-on-conflict)
  MasterStore:     client/secretary/rank reference data
  TxStore:         everything above plus WithTx

INVARIANTS ENFORCED AT THE STORAGE LAYER:
  - Among non-deleted assignments, (client, secretary, rank, month) is unique.
    Create returns ErrDuplicateAssignment when violated; two concurrent
    materializations of the same carryover candidate cannot both succeed.
  - Snapshots are unique per (subject, month) and replaced as a unit, reusing
    the existing row identity, so concurrent settlement runs for the same
    month cannot diverge.

SOFT DELETION:
  Assignments and work records are soft-deleted. Every query in these
  interfaces returns only active (non-deleted) rows; the active predicate is
  checked once here at the store boundary, not ad hoc in callers.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: production SQLite
  - engine/store/memory.go: in-memory for testing
*/
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ASSIGNMENT STORE
// =============================================================================

type AssignmentStore interface {
	// CreateAssignment inserts a new row, enforcing the key-uniqueness
	// invariant. Returns ErrDuplicateAssignment if a non-deleted row with the
	// same (client, secretary, rank, month) exists.
	CreateAssignment(ctx context.Context, a AssignmentRecord) error

	// GetAssignment returns an active assignment, or ErrAssignmentNotFound.
	GetAssignment(ctx context.Context, id AssignmentID) (*AssignmentRecord, error)

	// ListAssignmentsByMonth returns all active assignments for a month.
	ListAssignmentsByMonth(ctx context.Context, month Month) ([]AssignmentRecord, error)

	// ListAssignmentSummaries returns active assignments for a month joined
	// with display names, ordered by client name, secretary name, rank name,
	// then creation order. The carryover planner relies on this ordering.
	ListAssignmentSummaries(ctx context.Context, month Month) ([]AssignmentSummary, error)

	// PresenceMonths returns the distinct target months at or before upTo in
	// which an active assignment exists for key, in ascending order.
	PresenceMonths(ctx context.Context, key ContinuityKey, upTo Month) ([]Month, error)

	// ApplyIncentive overwrites the tenure-incentive fields on every active
	// assignment matching (client, secretary, month) whose rank is not
	// excludeRank, leaving base pay and increases untouched. Returns the
	// affected row count.
	ApplyIncentive(ctx context.Context, clientID ClientID, secretaryID SecretaryID, month Month,
		excludeRank RankID, clientRate, secretaryRate decimal.Decimal) (int, error)

	// SoftDeleteAssignment marks an assignment deleted, excluding it from all
	// further computations.
	SoftDeleteAssignment(ctx context.Context, id AssignmentID, at time.Time) error
}

// =============================================================================
// WORK STORE
// =============================================================================

type WorkStore interface {
	// CreateWork inserts a work record.
	CreateWork(ctx context.Context, w WorkRecord) error

	// GetWork returns an active work record, or ErrWorkNotFound.
	GetWork(ctx context.Context, id WorkID) (*WorkRecord, error)

	// UpdateWork persists approval/remand/dispute state changes.
	UpdateWork(ctx context.Context, w WorkRecord) error

	// ListWorkByAssignment returns all active work records for an assignment,
	// ordered by work date then creation order.
	ListWorkByAssignment(ctx context.Context, id AssignmentID) ([]WorkRecord, error)
}

// =============================================================================
// SNAPSHOT STORE - Replace-on-conflict settlement outputs
// =============================================================================

type SnapshotStore interface {
	// ReplaceClientInvoice upserts keyed by (client, month). On conflict the
	// totals are overwritten and the existing row identity is kept; the
	// returned row carries the persisted identity.
	ReplaceClientInvoice(ctx context.Context, inv ClientMonthlyInvoice) (ClientMonthlyInvoice, error)

	// ReplaceSecretarySummary is the secretary-side analogue.
	ReplaceSecretarySummary(ctx context.Context, sum SecretaryMonthlySummary) (SecretaryMonthlySummary, error)

	// GetClientInvoice returns the snapshot for (client, month), or
	// ErrSnapshotNotFound if settlement has not produced one.
	GetClientInvoice(ctx context.Context, clientID ClientID, month Month) (*ClientMonthlyInvoice, error)

	// GetSecretarySummary is the secretary-side analogue of GetClientInvoice.
	GetSecretarySummary(ctx context.Context, secretaryID SecretaryID, month Month) (*SecretaryMonthlySummary, error)

	ListClientInvoices(ctx context.Context, month Month) ([]ClientMonthlyInvoice, error)
	ListSecretarySummaries(ctx context.Context, month Month) ([]SecretaryMonthlySummary, error)
}

// =============================================================================
// MASTER STORE - Reference data the engine reads, never owns
// =============================================================================

type MasterStore interface {
	SaveClient(ctx context.Context, c Client) error
	SaveSecretary(ctx context.Context, s Secretary) error
	SaveRank(ctx context.Context, r Rank) error

	GetRank(ctx context.Context, id RankID) (*Rank, error)

	// PMRankID returns the sentinel project-management rank, or
	// ErrPMRankUnset if none is registered.
	PMRankID(ctx context.Context) (RankID, error)
}

// =============================================================================
// COMBINED STORE + TRANSACTIONS
// =============================================================================

// Store is everything the engine needs from persistence.
type Store interface {
	AssignmentStore
	WorkStore
	SnapshotStore
	MasterStore
}

// TxStore wraps Store with transaction support. Each public engine operation
// executes within one WithTx boundary: if fn returns an error the transaction
// is rolled back and no partial state is observable.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
