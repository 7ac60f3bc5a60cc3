package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENGINE - Facade bundling the settlement components
// =============================================================================

// Engine wires the four settlement components and the workflow over one
// transactional store. Outer layers (HTTP api, scheduler) talk to this.
type Engine struct {
	Continuity *ContinuityTracker
	Carryover  *CarryoverPlanner
	Settlement *SettlementAggregator
	Incentive  *IncentiveRatePropagator
	Workflow   *Workflow

	store TxStore
	clock Clock
}

// New builds an engine over the given store. A nil clock defaults to the
// system clock; an empty policy defaults to IncludeAllWork.
func New(store TxStore, clock Clock, policy SettlementPolicy) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	if policy == "" {
		policy = IncludeAllWork
	}
	return &Engine{
		Continuity: &ContinuityTracker{Assignments: store, Clock: clock},
		Carryover:  &CarryoverPlanner{Assignments: store},
		Settlement: &SettlementAggregator{Store: store, Clock: clock, Policy: policy},
		Incentive:  &IncentiveRatePropagator{Store: store, Clock: clock},
		Workflow:   &Workflow{Store: store, Clock: clock},
		store:      store,
		clock:      clock,
	}
}

// Store exposes the underlying store for read paths.
func (e *Engine) Store() TxStore { return e.store }

// Clock exposes the engine clock.
func (e *Engine) Clock() Clock { return e.clock }

// ContinuityCount is the exposed tenure operation.
func (e *Engine) ContinuityCount(ctx context.Context, key ContinuityKey, month Month) (int, error) {
	return e.Continuity.ContinuityCount(ctx, key, month)
}

// CarryoverCandidates is the exposed roll-forward planning operation.
func (e *Engine) CarryoverCandidates(ctx context.Context, source, destination Month) ([]AssignmentSummary, error) {
	return e.Carryover.Candidates(ctx, source, destination)
}

// RunSettlement is the exposed settlement operation.
func (e *Engine) RunSettlement(ctx context.Context, target Month) (*SettlementResult, error) {
	return e.Settlement.RunSettlement(ctx, target)
}

// ApplyTenureIncentive is the exposed propagation operation.
func (e *Engine) ApplyTenureIncentive(ctx context.Context,
	clientID ClientID, secretaryID SecretaryID, month Month,
	clientRate, secretaryRate decimal.Decimal) (int, error) {
	return e.Incentive.ApplyTenureIncentive(ctx, clientID, secretaryID, month, clientRate, secretaryRate)
}
