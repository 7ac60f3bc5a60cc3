/*
Package engine provides the assignment tenure and monthly billing settlement engine.

PURPOSE:
  This package contains the domain types and algorithms for managing staffing
  assignments between client companies and contracted secretaries: tenure
  (continuity) counting, carryover planning, monthly billing settlement, and
  tenure-incentive propagation.

KEY CONCEPTS IN THIS FILE (types.go):
  - AssignmentRecord: one client x secretary x rank pairing for one target month
  - WorkRecord:       one logged unit of work against an assignment
  - ClientMonthlyInvoice / SecretaryMonthlySummary: materialized settlement snapshots
  - ContinuityKey:    the (client, secretary, rank) tuple tenure is tracked over

DESIGN PRINCIPLES:
  1. Precision: uses decimal.Decimal for all currency math, never float64
  2. Type Safety: strong typing for IDs prevents mixing client/secretary/rank IDs
  3. Soft Deletion: records are marked deleted, never removed; every computation
     filters on the active predicate at the store boundary
  4. Replace, Don't Accumulate: settlement snapshots are fully recomputed and
     replaced per (subject, month) key, making re-runs idempotent

SEE ALSO:
  - month.go:      Month representation and the clamp rule
  - continuity.go: island/gap tenure counting
  - settlement.go: monthly billing aggregation
  - store.go:      persistence interfaces
*/
package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AssignmentID string
type WorkID string
type ClientID string
type SecretaryID string
type RankID string

// NewID returns a fresh random identifier for any record type.
func NewID() string { return uuid.NewString() }

// =============================================================================
// CONTINUITY KEY - The tuple tenure is tracked over
// =============================================================================

// ContinuityKey identifies one client x secretary x rank staffing relationship.
// Its "presence set" is the set of target months in which a non-deleted
// AssignmentRecord exists for the key.
type ContinuityKey struct {
	ClientID    ClientID
	SecretaryID SecretaryID
	RankID      RankID
}

// =============================================================================
// ASSIGNMENT - One pairing active for one target month
// =============================================================================

type AssignmentStatus string

const (
	AssignmentActive AssignmentStatus = "active"
	AssignmentClosed AssignmentStatus = "closed"
)

// AssignmentRecord represents one client x secretary x rank pairing active for
// one target month. Among non-deleted rows,
// (ClientID, SecretaryID, RankID, TargetMonth) is unique; the store enforces
// this at the storage layer.
type AssignmentRecord struct {
	ID          AssignmentID
	ClientID    ClientID
	SecretaryID SecretaryID
	RankID      RankID
	TargetMonth Month

	// Hourly rate components, client side and secretary side.
	// The effective rate per hour is base + increase + incentive.
	ClientBasePay      decimal.Decimal
	ClientIncrease     decimal.Decimal
	ClientIncentive    decimal.Decimal
	SecretaryBasePay   decimal.Decimal
	SecretaryIncrease  decimal.Decimal
	SecretaryIncentive decimal.Decimal

	Status    AssignmentStatus
	CreatedAt time.Time
	DeletedAt *time.Time
}

// Key returns the continuity key for this assignment.
func (a AssignmentRecord) Key() ContinuityKey {
	return ContinuityKey{ClientID: a.ClientID, SecretaryID: a.SecretaryID, RankID: a.RankID}
}

// Active reports whether the record participates in continuity, carryover and
// settlement computations.
func (a AssignmentRecord) Active() bool { return a.DeletedAt == nil }

// ClientRatePerHour is the client-side billable rate.
func (a AssignmentRecord) ClientRatePerHour() decimal.Decimal {
	return a.ClientBasePay.Add(a.ClientIncrease).Add(a.ClientIncentive)
}

// SecretaryRatePerHour is the secretary-side payable rate.
func (a AssignmentRecord) SecretaryRatePerHour() decimal.Decimal {
	return a.SecretaryBasePay.Add(a.SecretaryIncrease).Add(a.SecretaryIncentive)
}

// AssignmentSummary is an AssignmentRecord joined with display names, as
// returned by the carryover planner. Rates are carried along for display only;
// matching is by key.
type AssignmentSummary struct {
	AssignmentID  AssignmentID
	Key           ContinuityKey
	ClientName    string
	SecretaryName string
	RankName      string
	TargetMonth   Month

	ClientBasePay    decimal.Decimal
	SecretaryBasePay decimal.Decimal

	CreatedAt time.Time
}

// =============================================================================
// WORK RECORD - One logged unit of work
// =============================================================================

// WorkState is the approval state of a work record.
// Transitions: Unapproved -> Approved, Approved -> Remanded (clears approval),
// Remanded -> Approved (re-approval). Unapproved and Remanded are equivalent
// for approved-only totals.
type WorkState string

const (
	WorkUnapproved WorkState = "unapproved"
	WorkApproved   WorkState = "approved"
	WorkRemanded   WorkState = "remanded"
)

// WorkRecord is one logged unit of work against an assignment. Owned by the
// assignment; soft-deleted, never hard-deleted. The dispute ("alert") flag is
// orthogonal to the approval state and never blocks settlement.
type WorkRecord struct {
	ID           WorkID
	AssignmentID AssignmentID

	WorkDate        time.Time
	StartAt         time.Time
	EndAt           time.Time
	DurationMinutes int

	Description string

	State          WorkState
	ApprovedAt     *time.Time
	RemandedAt     *time.Time
	RemandComment  string
	Disputed       bool
	DisputedAt     *time.Time
	DisputeComment string

	CreatedAt time.Time
	DeletedAt *time.Time
}

// Active reports whether the record participates in settlement.
func (w WorkRecord) Active() bool { return w.DeletedAt == nil }

// Approve moves the record to Approved. Valid from Unapproved and Remanded.
func (w *WorkRecord) Approve(at time.Time) error {
	if w.State == WorkApproved {
		return &InvalidTransitionError{From: w.State, To: WorkApproved}
	}
	w.State = WorkApproved
	w.ApprovedAt = &at
	w.RemandedAt = nil
	w.RemandComment = ""
	return nil
}

// Remand sends an approved record back, clearing the approval. Only valid
// from Approved: approval and remand are mutually exclusive at any instant.
func (w *WorkRecord) Remand(at time.Time, comment string) error {
	if w.State != WorkApproved {
		return &InvalidTransitionError{From: w.State, To: WorkRemanded}
	}
	w.State = WorkRemanded
	w.ApprovedAt = nil
	w.RemandedAt = &at
	w.RemandComment = comment
	return nil
}

// Dispute flags a client dispute against the record. Informational only.
func (w *WorkRecord) Dispute(at time.Time, comment string) {
	w.Disputed = true
	w.DisputedAt = &at
	w.DisputeComment = comment
}

// =============================================================================
// SETTLEMENT SNAPSHOTS - Materialized monthly totals
// =============================================================================

type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceFinalized InvoiceStatus = "finalized"
)

// ClientMonthlyInvoice is the materialized client-side billable total for one
// month. Unique per (ClientID, TargetMonth); fully replaced each settlement
// run, with the existing row identity reused.
type ClientMonthlyInvoice struct {
	ID            string
	ClientID      ClientID
	TargetMonth   Month
	TotalAmount   decimal.Decimal
	WorkUnitCount int
	TotalMinutes  int
	Status        InvoiceStatus
	CreatedAt     time.Time
}

// SecretaryMonthlySummary is the secretary-side analogue of
// ClientMonthlyInvoice. Unique per (SecretaryID, TargetMonth).
type SecretaryMonthlySummary struct {
	ID            string
	SecretaryID   SecretaryID
	TargetMonth   Month
	TotalAmount   decimal.Decimal
	WorkUnitCount int
	TotalMinutes  int
	Status        InvoiceStatus
	FinalizedAt   *time.Time
	CreatedAt     time.Time
}

// =============================================================================
// MASTER DATA - Reference records the engine reads, never owns
// =============================================================================

// Client is a customer company. Registration/editing is an outer-layer
// concern; the engine only needs identity and display name.
type Client struct {
	ID        ClientID
	Name      string
	CreatedAt time.Time
}

// Secretary is a contracted worker.
type Secretary struct {
	ID        SecretaryID
	Name      string
	CreatedAt time.Time
}

// Rank is a task rank. The sentinel project-management rank is excluded from
// tenure-incentive propagation.
type Rank struct {
	ID        RankID
	Name      string
	IsPM      bool
	CreatedAt time.Time
}
