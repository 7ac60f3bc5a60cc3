/*
workflow.go - Registration and work-log surfaces feeding the engine

PURPOSE:
  The minimal mutation paths that surround the settlement core: registering
  assignments (optionally materialized from carryover candidates), soft
  deletion, and the work-record lifecycle (log, approve, remand, re-approve,
  dispute). The wider multi-portal CRUD lives outside this repository; these
  operations exist because the engine's invariants are enforced on them.

UNIQUENESS RE-CHECK:
  RegisterAssignment always inserts through the store's unique key. A
  carryover candidate that went stale between planning and use loses the race
  and surfaces ErrDuplicateAssignment ("already registered"), never a crash.
*/
package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// Workflow carries the registration and work-log operations.
type Workflow struct {
	Store TxStore
	Clock Clock
}

// RegisterAssignment validates and inserts a new assignment row. The target
// month is clamped; rates must be non-negative. Conflicts with an existing
// active key surface as ErrDuplicateAssignment.
func (wf *Workflow) RegisterAssignment(ctx context.Context, a AssignmentRecord) (*AssignmentRecord, error) {
	if anyNegative(a.ClientBasePay, a.ClientIncrease, a.ClientIncentive,
		a.SecretaryBasePay, a.SecretaryIncrease, a.SecretaryIncentive) {
		return nil, ErrInvalidRate
	}

	now := wf.Clock.Now()
	a.TargetMonth = Clamp(a.TargetMonth, now)
	if a.ID == "" {
		a.ID = AssignmentID(NewID())
	}
	if a.Status == "" {
		a.Status = AssignmentActive
	}
	a.CreatedAt = now
	a.DeletedAt = nil

	err := wf.Store.WithTx(ctx, func(store Store) error {
		if _, err := store.GetRank(ctx, a.RankID); err != nil {
			return err
		}
		return store.CreateAssignment(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// DeleteAssignment soft-deletes an assignment, excluding it from all further
// continuity, carryover and settlement computations.
func (wf *Workflow) DeleteAssignment(ctx context.Context, id AssignmentID) error {
	return wf.Store.WithTx(ctx, func(store Store) error {
		return store.SoftDeleteAssignment(ctx, id, wf.Clock.Now())
	})
}

// LogWork records one unit of work against an assignment. The duration must
// be positive and consistent with the start/end times when both are set.
func (wf *Workflow) LogWork(ctx context.Context, w WorkRecord) (*WorkRecord, error) {
	if w.DurationMinutes <= 0 {
		return nil, ErrInvalidWork
	}
	if !w.StartAt.IsZero() && !w.EndAt.IsZero() {
		if int(w.EndAt.Sub(w.StartAt).Minutes()) != w.DurationMinutes {
			return nil, ErrInvalidWork
		}
	}

	if w.ID == "" {
		w.ID = WorkID(NewID())
	}
	w.State = WorkUnapproved
	w.CreatedAt = wf.Clock.Now()
	w.DeletedAt = nil

	err := wf.Store.WithTx(ctx, func(store Store) error {
		if _, err := store.GetAssignment(ctx, w.AssignmentID); err != nil {
			return err
		}
		return store.CreateWork(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ApproveWork approves a work record (first approval or re-approval after a
// remand).
func (wf *Workflow) ApproveWork(ctx context.Context, id WorkID) (*WorkRecord, error) {
	return wf.transitionWork(ctx, id, func(w *WorkRecord) error {
		return w.Approve(wf.Clock.Now())
	})
}

// RemandWork sends an approved record back with a comment, clearing the
// approval timestamp.
func (wf *Workflow) RemandWork(ctx context.Context, id WorkID, comment string) (*WorkRecord, error) {
	return wf.transitionWork(ctx, id, func(w *WorkRecord) error {
		return w.Remand(wf.Clock.Now(), comment)
	})
}

// DisputeWork flags a client dispute. Informational; settlement proceeds.
func (wf *Workflow) DisputeWork(ctx context.Context, id WorkID, comment string) (*WorkRecord, error) {
	return wf.transitionWork(ctx, id, func(w *WorkRecord) error {
		w.Dispute(wf.Clock.Now(), comment)
		return nil
	})
}

func anyNegative(rates ...decimal.Decimal) bool {
	for _, r := range rates {
		if r.IsNegative() {
			return true
		}
	}
	return false
}

func (wf *Workflow) transitionWork(ctx context.Context, id WorkID, apply func(*WorkRecord) error) (*WorkRecord, error) {
	var out *WorkRecord
	err := wf.Store.WithTx(ctx, func(store Store) error {
		w, err := store.GetWork(ctx, id)
		if err != nil {
			return err
		}
		if err := apply(w); err != nil {
			return err
		}
		if err := store.UpdateWork(ctx, *w); err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
