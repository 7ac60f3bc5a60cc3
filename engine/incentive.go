/*
incentive.go - Tenure-incentive rate propagation

PURPOSE:
  Bulk-applies a pair of tenure-incentive rates (client side and secretary
  side) to every active assignment matching (client, secretary, month),
  excluding the sentinel project-management rank. Base pay and rate-increase
  fields are never touched.

  Intended to run after the continuity tracker reports a newly-crossed tenure
  threshold for the key. Idempotent: re-applying the same rates overwrites
  values with equal values.

CONSISTENCY:
  The continuity read and the dependent bulk update execute inside the same
  store transaction, so a concurrently changing presence set cannot produce a
  propagation based on a stale count.
*/
package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// IncentiveRatePropagator bulk-updates tenure-incentive fields.
type IncentiveRatePropagator struct {
	Store TxStore
	Clock Clock
}

// ApplyTenureIncentive overwrites the incentive fields on every active
// non-PM assignment for (client, secretary, month) and returns the affected
// row count. Negative rates are rejected before any store access.
func (p *IncentiveRatePropagator) ApplyTenureIncentive(ctx context.Context,
	clientID ClientID, secretaryID SecretaryID, target Month,
	clientRate, secretaryRate decimal.Decimal) (int, error) {

	if err := ValidateRate(clientRate); err != nil {
		return 0, err
	}
	if err := ValidateRate(secretaryRate); err != nil {
		return 0, err
	}

	month := Clamp(target, p.Clock.Now())

	affected := 0
	err := p.Store.WithTx(ctx, func(store Store) error {
		pmRank, err := store.PMRankID(ctx)
		if err != nil {
			return err
		}
		n, err := store.ApplyIncentive(ctx, clientID, secretaryID, month, pmRank, clientRate, secretaryRate)
		if err != nil {
			return err
		}
		affected = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// ApplyIfThresholdCrossed reads the continuity count and propagates the rates
// only when the count sits exactly on one of the given thresholds. The read
// and the write share one transaction. Returns (count, affectedRows).
func (p *IncentiveRatePropagator) ApplyIfThresholdCrossed(ctx context.Context,
	key ContinuityKey, target Month, thresholds []int,
	clientRate, secretaryRate decimal.Decimal) (int, int, error) {

	if err := ValidateRate(clientRate); err != nil {
		return 0, 0, err
	}
	if err := ValidateRate(secretaryRate); err != nil {
		return 0, 0, err
	}

	month := Clamp(target, p.Clock.Now())

	count := 0
	affected := 0
	err := p.Store.WithTx(ctx, func(store Store) error {
		months, err := store.PresenceMonths(ctx, key, month)
		if err != nil {
			return err
		}
		count = ConsecutiveRun(months, month)

		crossed := false
		for _, t := range thresholds {
			if count == t {
				crossed = true
				break
			}
		}
		if !crossed {
			return nil
		}

		pmRank, err := store.PMRankID(ctx)
		if err != nil {
			return err
		}
		affected, err = store.ApplyIncentive(ctx, key.ClientID, key.SecretaryID, month, pmRank, clientRate, secretaryRate)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	return count, affected, nil
}
