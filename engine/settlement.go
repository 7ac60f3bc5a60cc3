/*
settlement.go - Monthly billing settlement aggregation

PURPOSE:
  (Re)computes monthly billing snapshots from logged work: one
  ClientMonthlyInvoice per client and one SecretaryMonthlySummary per
  secretary active in the target month. Per work unit,
  amount = ratePerHour * minutes/60 rounded half-up to a whole currency unit,
  with the client-side and secretary-side rates evaluated independently.

IDEMPOTENCE:
  Snapshots are persisted replace-on-conflict keyed by (subject, month).
  Re-running settlement with unchanged work data yields identical totals and
  reuses the existing row identities, so concurrent runs for the same month
  cannot diverge.

APPROVAL POLICY:
  A single SettlementPolicy governs which work records count. IncludeAllWork
  (the default) aggregates everything logged regardless of approval state;
  ApprovedOnly restricts to approved records. Exactly one filter function
  implements the policy and both the persisted snapshot and any approved-only
  read path go through it. Disputed records are always included; the dispute
  flag is informational.

FAILURE MODES:
  A missing assignment or rank reference is a data-integrity error. The whole
  run executes inside one store transaction and aborts as a unit, so no
  partial snapshot is ever observable; prior snapshots keep their value.
*/
package engine

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SETTLEMENT POLICY
// =============================================================================

// SettlementPolicy selects which work records count toward totals.
type SettlementPolicy string

const (
	// IncludeAllWork aggregates every logged work unit, approval-agnostic.
	IncludeAllWork SettlementPolicy = "all"

	// ApprovedOnly aggregates only approved work units.
	ApprovedOnly SettlementPolicy = "approved_only"
)

// CountsForSettlement is the one place the policy is interpreted. Unapproved
// and Remanded are equivalent here: both excluded under ApprovedOnly.
func CountsForSettlement(w WorkRecord, policy SettlementPolicy) bool {
	if !w.Active() {
		return false
	}
	if policy == ApprovedOnly {
		return w.State == WorkApproved
	}
	return true
}

// =============================================================================
// SETTLEMENT AGGREGATOR
// =============================================================================

// SettlementAggregator recomputes monthly billing snapshots.
type SettlementAggregator struct {
	Store  TxStore
	Clock  Clock
	Policy SettlementPolicy
}

// SettlementResult is the output of one run.
type SettlementResult struct {
	TargetMonth Month
	Invoices    []ClientMonthlyInvoice
	Summaries   []SecretaryMonthlySummary
}

type subjectTotals struct {
	amount  decimal.Decimal
	units   int
	minutes int
}

// RunSettlement recomputes and replaces the snapshots for every subject with
// an active assignment in the clamped target month. The entire run is one
// transaction: on any error nothing is persisted and prior snapshots remain.
func (s *SettlementAggregator) RunSettlement(ctx context.Context, target Month) (*SettlementResult, error) {
	month := Clamp(target, s.Clock.Now())

	result := &SettlementResult{TargetMonth: month}
	err := s.Store.WithTx(ctx, func(store Store) error {
		assignments, err := store.ListAssignmentsByMonth(ctx, month)
		if err != nil {
			return err
		}

		byClient := make(map[ClientID]*subjectTotals)
		bySecretary := make(map[SecretaryID]*subjectTotals)
		ranksSeen := make(map[RankID]struct{})

		for _, a := range assignments {
			// Integrity check: the rank rates were derived from must exist.
			if _, ok := ranksSeen[a.RankID]; !ok {
				if _, err := store.GetRank(ctx, a.RankID); err != nil {
					return err
				}
				ranksSeen[a.RankID] = struct{}{}
			}

			work, err := store.ListWorkByAssignment(ctx, a.ID)
			if err != nil {
				return err
			}

			clientRate := a.ClientRatePerHour()
			secretaryRate := a.SecretaryRatePerHour()

			for _, w := range work {
				if !CountsForSettlement(w, s.Policy) {
					continue
				}

				ct := totalsFor(byClient, a.ClientID)
				ct.amount = ct.amount.Add(WorkAmount(clientRate, w.DurationMinutes))
				ct.units++
				ct.minutes += w.DurationMinutes

				st := totalsFor(bySecretary, a.SecretaryID)
				st.amount = st.amount.Add(WorkAmount(secretaryRate, w.DurationMinutes))
				st.units++
				st.minutes += w.DurationMinutes
			}

			// A subject with assignments but no countable work still gets a
			// zeroed snapshot: the replace semantics must clear stale totals.
			totalsFor(byClient, a.ClientID)
			totalsFor(bySecretary, a.SecretaryID)
		}

		now := s.Clock.Now()

		for _, clientID := range sortedClientIDs(byClient) {
			t := byClient[clientID]
			persisted, err := store.ReplaceClientInvoice(ctx, ClientMonthlyInvoice{
				ID:            NewID(),
				ClientID:      clientID,
				TargetMonth:   month,
				TotalAmount:   t.amount,
				WorkUnitCount: t.units,
				TotalMinutes:  t.minutes,
				Status:        InvoiceDraft,
				CreatedAt:     now,
			})
			if err != nil {
				return err
			}
			result.Invoices = append(result.Invoices, persisted)
		}

		for _, secretaryID := range sortedSecretaryIDs(bySecretary) {
			t := bySecretary[secretaryID]
			persisted, err := store.ReplaceSecretarySummary(ctx, SecretaryMonthlySummary{
				ID:            NewID(),
				SecretaryID:   secretaryID,
				TargetMonth:   month,
				TotalAmount:   t.amount,
				WorkUnitCount: t.units,
				TotalMinutes:  t.minutes,
				Status:        InvoiceDraft,
				CreatedAt:     now,
			})
			if err != nil {
				return err
			}
			result.Summaries = append(result.Summaries, persisted)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func totalsFor[K comparable](m map[K]*subjectTotals, k K) *subjectTotals {
	t, ok := m[k]
	if !ok {
		t = &subjectTotals{amount: decimal.Zero}
		m[k] = t
	}
	return t
}

func sortedClientIDs(m map[ClientID]*subjectTotals) []ClientID {
	ids := make([]ClientID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedSecretaryIDs(m map[SecretaryID]*subjectTotals) []SecretaryID {
	ids := make([]SecretaryID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// FinalizeSummary stamps a secretary summary as finalized. Kept on the
// aggregator because it shares the snapshot store.
func (s *SettlementAggregator) FinalizeSummary(ctx context.Context, secretaryID SecretaryID, month Month, at time.Time) (*SecretaryMonthlySummary, error) {
	var out *SecretaryMonthlySummary
	err := s.Store.WithTx(ctx, func(store Store) error {
		sum, err := store.GetSecretarySummary(ctx, secretaryID, month)
		if err != nil {
			return err
		}
		sum.Status = InvoiceFinalized
		sum.FinalizedAt = &at
		persisted, err := store.ReplaceSecretarySummary(ctx, *sum)
		if err != nil {
			return err
		}
		out = &persisted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
