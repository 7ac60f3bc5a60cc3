/*
scheduler.go - Automated monthly settlement scheduler

PURPOSE:
  Runs the monthly settlement automatically. On each cron firing the
  scheduler settles the previous calendar month, so invoices and summaries
  exist without an operator calling POST /api/settlement/run.

DESIGN:
  - robfig/cron drives the schedule (default: 1st of the month at 02:00)
  - Settlement is idempotent, so an extra firing (restart, manual trigger)
    only rewrites the same snapshots
  - Failures are logged and retried at the next firing; a settlement run
    rolls back as a unit so a failed run leaves no partial snapshots

USAGE:
  scheduler := NewSettlementScheduler(eng, "0 2 1 * *")
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - engine/settlement.go: the settlement run this drives
  - handlers.go: RunSettlement endpoint (manual trigger)
*/
package api

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/assignia/staffing-engine/engine"
)

// SettlementScheduler settles the previous month on a cron schedule, then
// propagates tenure incentives for keys whose count crossed a threshold.
type SettlementScheduler struct {
	Engine   *engine.Engine
	CronSpec string
	Enabled  bool

	// Tenure thresholds (consecutive months) and the rates propagated when
	// one is crossed. Propagation is skipped when Thresholds is empty.
	Thresholds    []int
	ClientRate    decimal.Decimal
	SecretaryRate decimal.Decimal

	cron *cron.Cron
}

// NewSettlementScheduler creates a new scheduler. An empty spec falls back
// to the 1st of each month at 02:00.
func NewSettlementScheduler(eng *engine.Engine, spec string) *SettlementScheduler {
	if spec == "" {
		spec = "0 2 1 * *"
	}
	return &SettlementScheduler{
		Engine:   eng,
		CronSpec: spec,
		Enabled:  true,
	}
}

// Start begins the scheduler.
func (ss *SettlementScheduler) Start() error {
	if !ss.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return nil
	}

	ss.cron = cron.New()
	if _, err := ss.cron.AddFunc(ss.CronSpec, ss.settlePreviousMonth); err != nil {
		return err
	}
	ss.cron.Start()

	log.Printf("[Scheduler] Started with spec: %q", ss.CronSpec)
	return nil
}

// Stop stops the scheduler, waiting for a running job to finish.
func (ss *SettlementScheduler) Stop() {
	if ss.cron != nil {
		ctx := ss.cron.Stop()
		<-ctx.Done()
		log.Println("[Scheduler] Stopped")
	}
}

// RunNow triggers an immediate settlement of the previous month (for
// testing/admin).
func (ss *SettlementScheduler) RunNow() {
	ss.settlePreviousMonth()
}

func (ss *SettlementScheduler) settlePreviousMonth() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	target := engine.MonthOf(ss.Engine.Clock().Now()).AddMonths(-1)
	log.Printf("[Scheduler] Settling %s", target)

	result, err := ss.Engine.RunSettlement(ctx, target)
	if err != nil {
		log.Printf("[Scheduler] Settlement of %s failed: %v", target, err)
		return
	}
	log.Printf("[Scheduler] Settled %s: %d invoices, %d summaries",
		result.TargetMonth, len(result.Invoices), len(result.Summaries))

	ss.propagateIncentives(ctx, engine.MonthOf(ss.Engine.Clock().Now()))
}

// propagateIncentives checks every active staffing key in the given month and
// applies the configured incentive rates where the tenure count sits exactly
// on a threshold. Per-key failures are logged and skipped so one bad key
// never blocks the rest.
func (ss *SettlementScheduler) propagateIncentives(ctx context.Context, month engine.Month) {
	if len(ss.Thresholds) == 0 {
		return
	}

	assignments, err := ss.Engine.Store().ListAssignmentsByMonth(ctx, month)
	if err != nil {
		log.Printf("[Scheduler] Incentive pass for %s failed: %v", month, err)
		return
	}

	seen := make(map[engine.ContinuityKey]bool, len(assignments))
	for _, a := range assignments {
		key := a.Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		count, affected, err := ss.Engine.Incentive.ApplyIfThresholdCrossed(
			ctx, key, month, ss.Thresholds, ss.ClientRate, ss.SecretaryRate)
		if err != nil {
			log.Printf("[Scheduler] Incentive for client=%s secretary=%s rank=%s failed: %v",
				key.ClientID, key.SecretaryID, key.RankID, err)
			continue
		}
		if affected > 0 {
			log.Printf("[Scheduler] Tenure %d crossed a threshold for client=%s secretary=%s: %d assignments updated",
				count, key.ClientID, key.SecretaryID, affected)
		}
	}
}
