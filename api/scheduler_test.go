package api

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assignia/staffing-engine/engine"
	"github.com/assignia/staffing-engine/store/sqlite"
)

func TestScheduler_RunNowSettlesPreviousMonthAndPropagatesIncentives(t *testing.T) {
	// GIVEN: three consecutive months of the same staffing key ending in the
	//        current month (2025-06 under the fixed clock), with work logged
	//        in the previous month
	// WHEN: the scheduler fires with threshold {3} and rates 150/100
	// THEN: 2025-05 is settled and the 2025-06 assignment gets the incentive

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	eng := engine.New(store, apiClock, engine.IncludeAllWork)
	ctx := context.Background()

	now := apiClock.Now()
	require.NoError(t, store.SaveClient(ctx, engine.Client{ID: "acme", Name: "Acme Corp", CreatedAt: now}))
	require.NoError(t, store.SaveSecretary(ctx, engine.Secretary{ID: "sato", Name: "Sato", CreatedAt: now}))
	require.NoError(t, store.SaveRank(ctx, engine.Rank{ID: "r-std", Name: "Regular", CreatedAt: now}))
	require.NoError(t, store.SaveRank(ctx, engine.Rank{ID: "r-pm", Name: "Project Management", IsPM: true, CreatedAt: now}))

	var current *engine.AssignmentRecord
	for _, m := range []string{"2025-04", "2025-05", "2025-06"} {
		a, err := eng.Workflow.RegisterAssignment(ctx, engine.AssignmentRecord{
			ClientID:         "acme",
			SecretaryID:      "sato",
			RankID:           "r-std",
			TargetMonth:      engine.MustMonth(m),
			ClientBasePay:    decimal.NewFromInt(1200),
			SecretaryBasePay: decimal.NewFromInt(700),
		})
		require.NoError(t, err)
		if m == "2025-05" {
			_, err = eng.Workflow.LogWork(ctx, engine.WorkRecord{
				AssignmentID:    a.ID,
				WorkDate:        time.Date(2025, time.May, 12, 0, 0, 0, 0, time.UTC),
				DurationMinutes: 60,
			})
			require.NoError(t, err)
		}
		if m == "2025-06" {
			current = a
		}
	}

	scheduler := NewSettlementScheduler(eng, "")
	scheduler.Thresholds = []int{3}
	scheduler.ClientRate = decimal.NewFromInt(150)
	scheduler.SecretaryRate = decimal.NewFromInt(100)

	scheduler.RunNow()

	inv, err := store.GetClientInvoice(ctx, "acme", engine.MustMonth("2025-05"))
	require.NoError(t, err, "previous month settled")
	assert.True(t, inv.TotalAmount.Equal(decimal.NewFromInt(1200)))

	got, err := store.GetAssignment(ctx, current.ID)
	require.NoError(t, err)
	assert.True(t, got.ClientIncentive.Equal(decimal.NewFromInt(150)), "threshold 3 crossed")
	assert.True(t, got.SecretaryIncentive.Equal(decimal.NewFromInt(100)))
}

func TestScheduler_NoPropagationOffThreshold(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	eng := engine.New(store, apiClock, engine.IncludeAllWork)
	ctx := context.Background()

	now := apiClock.Now()
	require.NoError(t, store.SaveClient(ctx, engine.Client{ID: "acme", Name: "Acme Corp", CreatedAt: now}))
	require.NoError(t, store.SaveSecretary(ctx, engine.Secretary{ID: "sato", Name: "Sato", CreatedAt: now}))
	require.NoError(t, store.SaveRank(ctx, engine.Rank{ID: "r-std", Name: "Regular", CreatedAt: now}))
	require.NoError(t, store.SaveRank(ctx, engine.Rank{ID: "r-pm", Name: "Project Management", IsPM: true, CreatedAt: now}))

	a, err := eng.Workflow.RegisterAssignment(ctx, engine.AssignmentRecord{
		ClientID:         "acme",
		SecretaryID:      "sato",
		RankID:           "r-std",
		TargetMonth:      engine.MustMonth("2025-06"),
		ClientBasePay:    decimal.NewFromInt(1200),
		SecretaryBasePay: decimal.NewFromInt(700),
	})
	require.NoError(t, err)

	scheduler := NewSettlementScheduler(eng, "")
	scheduler.Thresholds = []int{6, 12}
	scheduler.ClientRate = decimal.NewFromInt(150)
	scheduler.SecretaryRate = decimal.NewFromInt(100)

	scheduler.RunNow()

	got, err := store.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.ClientIncentive.IsZero(), "tenure 1 sits on no threshold")
}
