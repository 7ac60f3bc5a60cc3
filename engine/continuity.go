/*
continuity.go - Tenure counting via island/gap detection

PURPOSE:
  Computes how many consecutive months a (client, secretary, rank) key has
  been continuously staffed, ending at a target month. The count unlocks
  escalating tenure-incentive pay.

ALGORITHM:
  The presence set is converted to absolute month indices (year*12 + month)
  and sorted. In a sorted sequence, every maximal run of consecutive integers
  shares the same (value - position) offset, and runs separated by gaps are
  guaranteed different offsets. The continuity count is the size of the run
  whose offset matches the target month's; if the target month itself is
  absent, continuity is 0 (no active assignment => no tenure to report).

  ConsecutiveRun is a pure function over the sorted index list, independently
  unit-testable without any store dependency.

SEE ALSO:
  - month.go:    Month.Index and the clamp rule
  - incentive.go: invoked after a newly-crossed tenure threshold
*/
package engine

import (
	"context"
	"sort"
)

// =============================================================================
// PURE ISLAND DETECTION
// =============================================================================

// ConsecutiveRun returns the length of the maximal run of consecutive months
// in present that ends exactly at end. Returns 0 if end is not present.
// Duplicates in present are ignored.
func ConsecutiveRun(present []Month, end Month) int {
	if len(present) == 0 {
		return 0
	}

	seen := make(map[int]struct{}, len(present))
	indices := make([]int, 0, len(present))
	for _, m := range present {
		idx := m.Index()
		if idx > end.Index() {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		indices = append(indices, idx)
	}
	if _, ok := seen[end.Index()]; !ok {
		return 0
	}
	sort.Ints(indices)

	// Rank of end within the sorted sequence: indices is deduplicated and
	// sorted, and end is its maximum after the upTo filter above.
	endRank := len(indices) - 1
	endOffset := end.Index() - endRank

	count := 0
	for rank, idx := range indices {
		if idx-rank == endOffset {
			count++
		}
	}
	return count
}

// =============================================================================
// CONTINUITY TRACKER
// =============================================================================

// ContinuityTracker computes tenure counts from the assignment store.
// Pure read; when a dependent write follows (incentive propagation), the
// caller runs both inside one store transaction.
type ContinuityTracker struct {
	Assignments AssignmentStore
	Clock       Clock
}

// ContinuityCount returns the number of consecutive months with an active
// assignment for key, ending at the clamped requested month.
func (t *ContinuityTracker) ContinuityCount(ctx context.Context, key ContinuityKey, requested Month) (int, error) {
	m := Clamp(requested, t.Clock.Now())

	months, err := t.Assignments.PresenceMonths(ctx, key, m)
	if err != nil {
		return 0, err
	}
	return ConsecutiveRun(months, m), nil
}
