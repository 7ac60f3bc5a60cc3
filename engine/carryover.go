/*
carryover.go - Roll-forward candidate planning

PURPOSE:
  Proposes which of a source month's assignments should be replicated into a
  destination month: every active assignment in the source whose
  (client, secretary, rank) key has no active counterpart in the destination.

  This is a set difference over keys, not full rows; rates are carried along
  for display only. The planner never mutates state. Materializing a chosen
  candidate is the registration workflow's job, which must re-check the
  uniqueness invariant at insert time because candidates can go stale between
  computation and use - the store's unique key is the sole arbiter.

SEE ALSO:
  - workflow.go: RegisterAssignment, the insert path that re-checks
  - store.go:    ListAssignmentSummaries ordering contract
*/
package engine

import (
	"context"
)

// CarryoverPlanner computes roll-forward candidates. Read-only planning aid.
type CarryoverPlanner struct {
	Assignments AssignmentStore
}

// Candidates returns every active assignment in source whose key is absent
// from destination, ordered by client name, secretary name, rank, then
// creation order (stable, deterministic for presentation).
func (p *CarryoverPlanner) Candidates(ctx context.Context, source, destination Month) ([]AssignmentSummary, error) {
	summaries, err := p.Assignments.ListAssignmentSummaries(ctx, source)
	if err != nil {
		return nil, err
	}

	existing, err := p.Assignments.ListAssignmentsByMonth(ctx, destination)
	if err != nil {
		return nil, err
	}
	taken := make(map[ContinuityKey]struct{}, len(existing))
	for _, a := range existing {
		taken[a.Key()] = struct{}{}
	}

	candidates := make([]AssignmentSummary, 0, len(summaries))
	for _, s := range summaries {
		if _, ok := taken[s.Key]; ok {
			continue
		}
		candidates = append(candidates, s)
	}
	return candidates, nil
}
