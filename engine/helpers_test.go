package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/assignia/staffing-engine/engine"
	"github.com/assignia/staffing-engine/engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// Tests run at a fixed "today" of 2025-06-15, so the clamp ceiling is 2025-07.
var testClock = engine.FixedClock{At: time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)}

func mm(s string) engine.Month { return engine.MustMonth(s) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// newTestEngine builds an engine over a fresh in-memory store with reference
// data seeded: clients acme/globex, secretaries sato/suzuki, ranks r-std
// (regular), r-sr (senior) and r-pm (project management).
func newTestEngine(t *testing.T) (*engine.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	eng := engine.New(mem, testClock, engine.IncludeAllWork)

	ctx := context.Background()
	now := testClock.Now()
	require.NoError(t, mem.SaveClient(ctx, engine.Client{ID: "acme", Name: "Acme Corp", CreatedAt: now}))
	require.NoError(t, mem.SaveClient(ctx, engine.Client{ID: "globex", Name: "Globex Inc", CreatedAt: now}))
	require.NoError(t, mem.SaveSecretary(ctx, engine.Secretary{ID: "sato", Name: "Sato", CreatedAt: now}))
	require.NoError(t, mem.SaveSecretary(ctx, engine.Secretary{ID: "suzuki", Name: "Suzuki", CreatedAt: now}))
	require.NoError(t, mem.SaveRank(ctx, engine.Rank{ID: "r-std", Name: "Regular", CreatedAt: now}))
	require.NoError(t, mem.SaveRank(ctx, engine.Rank{ID: "r-sr", Name: "Senior", CreatedAt: now}))
	require.NoError(t, mem.SaveRank(ctx, engine.Rank{ID: "r-pm", Name: "Project Management", IsPM: true, CreatedAt: now}))
	return eng, mem
}

// register creates an assignment through the workflow with the given base
// rates; increases and incentives start at zero.
func register(t *testing.T, eng *engine.Engine, client, secretary, rank, month, clientBase, secretaryBase string) *engine.AssignmentRecord {
	t.Helper()
	created, err := eng.Workflow.RegisterAssignment(context.Background(), engine.AssignmentRecord{
		ClientID:         engine.ClientID(client),
		SecretaryID:      engine.SecretaryID(secretary),
		RankID:           engine.RankID(rank),
		TargetMonth:      mm(month),
		ClientBasePay:    dec(clientBase),
		SecretaryBasePay: dec(secretaryBase),
	})
	require.NoError(t, err)
	return created
}

// logWork records one work unit of the given duration against an assignment.
func logWork(t *testing.T, eng *engine.Engine, assignmentID engine.AssignmentID, date string, minutes int) *engine.WorkRecord {
	t.Helper()
	workDate, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)
	created, err := eng.Workflow.LogWork(context.Background(), engine.WorkRecord{
		AssignmentID:    assignmentID,
		WorkDate:        workDate,
		DurationMinutes: minutes,
	})
	require.NoError(t, err)
	return created
}
