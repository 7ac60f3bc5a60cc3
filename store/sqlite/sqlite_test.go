package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assignia/staffing-engine/engine"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func month(s string) engine.Month { return engine.MustMonth(s) }

func seedMasters(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveClient(ctx, engine.Client{ID: "c1", Name: "Acme Corp", CreatedAt: now}))
	require.NoError(t, s.SaveClient(ctx, engine.Client{ID: "c2", Name: "Globex Inc", CreatedAt: now}))
	require.NoError(t, s.SaveSecretary(ctx, engine.Secretary{ID: "s1", Name: "Sato", CreatedAt: now}))
	require.NoError(t, s.SaveSecretary(ctx, engine.Secretary{ID: "s2", Name: "Suzuki", CreatedAt: now}))
	require.NoError(t, s.SaveRank(ctx, engine.Rank{ID: "r1", Name: "Regular", CreatedAt: now}))
	require.NoError(t, s.SaveRank(ctx, engine.Rank{ID: "r-pm", Name: "Project Management", IsPM: true, CreatedAt: now}))
}

func testAssignment(id, client, secretary, rank, m string) engine.AssignmentRecord {
	return engine.AssignmentRecord{
		ID:                 engine.AssignmentID(id),
		ClientID:           engine.ClientID(client),
		SecretaryID:        engine.SecretaryID(secretary),
		RankID:             engine.RankID(rank),
		TargetMonth:        month(m),
		ClientBasePay:      decimal.NewFromInt(1000),
		ClientIncrease:     decimal.Zero,
		ClientIncentive:    decimal.Zero,
		SecretaryBasePay:   decimal.NewFromInt(700),
		SecretaryIncrease:  decimal.Zero,
		SecretaryIncentive: decimal.Zero,
		Status:             engine.AssignmentActive,
		CreatedAt:          time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

func TestSQLite_CreateAndGetAssignment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedMasters(t, s)

	in := testAssignment("a1", "c1", "s1", "r1", "2025-06")
	in.ClientIncrease = decimal.NewFromInt(200)
	require.NoError(t, s.CreateAssignment(ctx, in))

	got, err := s.GetAssignment(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, in.ID, got.ID)
	assert.Equal(t, in.TargetMonth, got.TargetMonth)
	assert.True(t, got.ClientBasePay.Equal(decimal.NewFromInt(1000)))
	assert.True(t, got.ClientIncrease.Equal(decimal.NewFromInt(200)), "rates survive the round trip exactly")
	assert.Equal(t, engine.AssignmentActive, got.Status)
	assert.Nil(t, got.DeletedAt)
}

func TestSQLite_DuplicateActiveKeyRejected(t *testing.T) {
	// The partial unique index is the arbiter: same key + month is a conflict
	// while the first row is live, and allowed again after soft deletion.
	s := newTestStore(t)
	ctx := context.Background()
	seedMasters(t, s)

	require.NoError(t, s.CreateAssignment(ctx, testAssignment("a1", "c1", "s1", "r1", "2025-06")))

	err := s.CreateAssignment(ctx, testAssignment("a2", "c1", "s1", "r1", "2025-06"))
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrDuplicateAssignment)
	var dup *engine.DuplicateAssignmentError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, engine.ContinuityKey{ClientID: "c1", SecretaryID: "s1", RankID: "r1"}, dup.Key)

	require.NoError(t, s.SoftDeleteAssignment(ctx, "a1", time.Now()))
	assert.NoError(t, s.CreateAssignment(ctx, testAssignment("a3", "c1", "s1", "r1", "2025-06")))
}

func TestSQLite_SoftDeleteHidesAssignment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedMasters(t, s)

	require.NoError(t, s.CreateAssignment(ctx, testAssignment("a1", "c1", "s1", "r1", "2025-06")))
	require.NoError(t, s.SoftDeleteAssignment(ctx, "a1", time.Now()))

	_, err := s.GetAssignment(ctx, "a1")
	assert.ErrorIs(t, err, engine.ErrAssignmentNotFound)

	list, err := s.ListAssignmentsByMonth(ctx, month("2025-06"))
	require.NoError(t, err)
	assert.Empty(t, list)

	// Deleting twice is a not-found, not a silent no-op.
	err = s.SoftDeleteAssignment(ctx, "a1", time.Now())
	assert.ErrorIs(t, err, engine.ErrAssignmentNotFound)
}

func TestSQLite_PresenceMonthsSortedAndBounded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedMasters(t, s)

	for i, m := range []string{"2025-06", "2025-04", "2025-08", "2025-12"} {
		a := testAssignment(string(rune('a'+i))+"1", "c1", "s1", "r1", m)
		require.NoError(t, s.CreateAssignment(ctx, a))
	}
	// Another rank never contributes to this key.
	require.NoError(t, s.CreateAssignment(ctx, testAssignment("x1", "c1", "s1", "r-pm", "2025-05")))

	months, err := s.PresenceMonths(ctx,
		engine.ContinuityKey{ClientID: "c1", SecretaryID: "s1", RankID: "r1"}, month("2025-08"))
	require.NoError(t, err)
	assert.Equal(t, []engine.Month{month("2025-04"), month("2025-06"), month("2025-08")}, months)
}

func TestSQLite_ListAssignmentSummariesJoinsNames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedMasters(t, s)

	require.NoError(t, s.CreateAssignment(ctx, testAssignment("a1", "c2", "s1", "r1", "2025-06")))
	require.NoError(t, s.CreateAssignment(ctx, testAssignment("a2", "c1", "s2", "r1", "2025-06")))
	require.NoError(t, s.CreateAssignment(ctx, testAssignment("a3", "c1", "s1", "r1", "2025-06")))

	list, err := s.ListAssignmentSummaries(ctx, month("2025-06"))
	require.NoError(t, err)
	require.Len(t, list, 3)

	// Ordered by client name, then secretary name.
	assert.Equal(t, "Acme Corp", list[0].ClientName)
	assert.Equal(t, "Sato", list[0].SecretaryName)
	assert.Equal(t, "Acme Corp", list[1].ClientName)
	assert.Equal(t, "Suzuki", list[1].SecretaryName)
	assert.Equal(t, "Globex Inc", list[2].ClientName)
	assert.Equal(t, "Regular", list[0].RankName)
}

func TestSQLite_ApplyIncentiveExcludesRank(t *testing.T) {
	// GIVEN: two regular assignments and one PM assignment for the same pair
	// WHEN: applying incentives excluding the PM rank
	// THEN: exactly the non-PM rows change, and the call reports how many
	s := newTestStore(t)
	ctx := context.Background()
	seedMasters(t, s)
	require.NoError(t, s.SaveRank(ctx, engine.Rank{ID: "r2", Name: "Senior", CreatedAt: time.Now()}))

	require.NoError(t, s.CreateAssignment(ctx, testAssignment("a1", "c1", "s1", "r1", "2025-06")))
	require.NoError(t, s.CreateAssignment(ctx, testAssignment("a2", "c1", "s1", "r2", "2025-06")))
	require.NoError(t, s.CreateAssignment(ctx, testAssignment("a3", "c1", "s1", "r-pm", "2025-06")))
	// Different secretary, out of scope.
	require.NoError(t, s.CreateAssignment(ctx, testAssignment("a4", "c1", "s2", "r1", "2025-06")))

	affected, err := s.ApplyIncentive(ctx, "c1", "s1", month("2025-06"), "r-pm",
		decimal.NewFromInt(150), decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, 2, affected)

	a1, err := s.GetAssignment(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, a1.ClientIncentive.Equal(decimal.NewFromInt(150)))
	assert.True(t, a1.SecretaryIncentive.Equal(decimal.NewFromInt(100)))

	pm, err := s.GetAssignment(ctx, "a3")
	require.NoError(t, err)
	assert.True(t, pm.ClientIncentive.IsZero())

	other, err := s.GetAssignment(ctx, "a4")
	require.NoError(t, err)
	assert.True(t, other.ClientIncentive.IsZero())
}

// =============================================================================
// WORK RECORDS
// =============================================================================

func TestSQLite_WorkRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedMasters(t, s)
	require.NoError(t, s.CreateAssignment(ctx, testAssignment("a1", "c1", "s1", "r1", "2025-06")))

	start := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)
	w := engine.WorkRecord{
		ID:              "w1",
		AssignmentID:    "a1",
		WorkDate:        time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC),
		StartAt:         start,
		EndAt:           start.Add(90 * time.Minute),
		DurationMinutes: 90,
		Description:     "inbox triage",
		State:           engine.WorkUnapproved,
		CreatedAt:       start,
	}
	require.NoError(t, s.CreateWork(ctx, w))

	got, err := s.GetWork(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, w.DurationMinutes, got.DurationMinutes)
	assert.Equal(t, w.Description, got.Description)
	assert.True(t, got.StartAt.Equal(start))
	assert.Equal(t, engine.WorkUnapproved, got.State)
	assert.Nil(t, got.ApprovedAt)

	// State change persists through UpdateWork.
	at := start.Add(24 * time.Hour)
	got.State = engine.WorkApproved
	got.ApprovedAt = &at
	require.NoError(t, s.UpdateWork(ctx, *got))

	again, err := s.GetWork(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, engine.WorkApproved, again.State)
	require.NotNil(t, again.ApprovedAt)
	assert.True(t, again.ApprovedAt.Equal(at))
}

func TestSQLite_GetWorkNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetWork(context.Background(), "missing")
	assert.ErrorIs(t, err, engine.ErrWorkNotFound)
}

func TestSQLite_ListWorkByAssignment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedMasters(t, s)
	require.NoError(t, s.CreateAssignment(ctx, testAssignment("a1", "c1", "s1", "r1", "2025-06")))
	require.NoError(t, s.CreateAssignment(ctx, testAssignment("a2", "c1", "s2", "r1", "2025-06")))

	day := func(d int) time.Time { return time.Date(2025, time.June, d, 0, 0, 0, 0, time.UTC) }
	for i, rec := range []engine.WorkRecord{
		{ID: "w1", AssignmentID: "a1", WorkDate: day(3), DurationMinutes: 60},
		{ID: "w2", AssignmentID: "a1", WorkDate: day(2), DurationMinutes: 30},
		{ID: "w3", AssignmentID: "a2", WorkDate: day(2), DurationMinutes: 45},
	} {
		rec.State = engine.WorkUnapproved
		rec.CreatedAt = day(10).Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.CreateWork(ctx, rec))
	}

	list, err := s.ListWorkByAssignment(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, engine.WorkID("w2"), list[0].ID, "ordered by work date ascending")
	assert.Equal(t, engine.WorkID("w1"), list[1].ID)
}

// =============================================================================
// SETTLEMENT SNAPSHOTS
// =============================================================================

func TestSQLite_ReplaceInvoiceKeepsRowIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedMasters(t, s)

	first, err := s.ReplaceClientInvoice(ctx, engine.ClientMonthlyInvoice{
		ID: "inv-1", ClientID: "c1", TargetMonth: month("2025-06"),
		TotalAmount: decimal.NewFromInt(1000), WorkUnitCount: 1, TotalMinutes: 60,
		Status:    engine.InvoiceDraft,
		CreatedAt: time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	second, err := s.ReplaceClientInvoice(ctx, engine.ClientMonthlyInvoice{
		ID: "inv-2", ClientID: "c1", TargetMonth: month("2025-06"),
		TotalAmount: decimal.NewFromInt(2500), WorkUnitCount: 2, TotalMinutes: 120,
		Status:    engine.InvoiceDraft,
		CreatedAt: time.Date(2025, time.July, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "conflict keeps the first id")
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
	assert.True(t, second.TotalAmount.Equal(decimal.NewFromInt(2500)))
	assert.Equal(t, 2, second.WorkUnitCount)

	list, err := s.ListClientInvoices(ctx, month("2025-06"))
	require.NoError(t, err)
	assert.Len(t, list, 1, "replace, don't accumulate")
}

func TestSQLite_ReplaceSummaryKeepsRowIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.ReplaceSecretarySummary(ctx, engine.SecretaryMonthlySummary{
		ID: "sum-1", SecretaryID: "s1", TargetMonth: month("2025-06"),
		TotalAmount: decimal.NewFromInt(700), WorkUnitCount: 1, TotalMinutes: 60,
		Status:    engine.InvoiceDraft,
		CreatedAt: time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	at := time.Date(2025, time.July, 5, 0, 0, 0, 0, time.UTC)
	second, err := s.ReplaceSecretarySummary(ctx, engine.SecretaryMonthlySummary{
		ID: "sum-2", SecretaryID: "s1", TargetMonth: month("2025-06"),
		TotalAmount: decimal.NewFromInt(1400), WorkUnitCount: 2, TotalMinutes: 120,
		Status: engine.InvoiceFinalized, FinalizedAt: &at,
		CreatedAt: time.Date(2025, time.July, 5, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, engine.InvoiceFinalized, second.Status)
	require.NotNil(t, second.FinalizedAt)
	assert.True(t, second.FinalizedAt.Equal(at))
}

func TestSQLite_SnapshotNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetClientInvoice(ctx, "c1", month("2025-06"))
	assert.ErrorIs(t, err, engine.ErrSnapshotNotFound)

	_, err = s.GetSecretarySummary(ctx, "s1", month("2025-06"))
	assert.ErrorIs(t, err, engine.ErrSnapshotNotFound)
}

// =============================================================================
// MASTER DATA
// =============================================================================

func TestSQLite_RankUpsertAndPMLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.PMRankID(ctx)
	assert.ErrorIs(t, err, engine.ErrPMRankUnset, "no PM rank registered yet")

	now := time.Now().UTC()
	require.NoError(t, s.SaveRank(ctx, engine.Rank{ID: "r-pm", Name: "PM", IsPM: true, CreatedAt: now}))

	id, err := s.PMRankID(ctx)
	require.NoError(t, err)
	assert.Equal(t, engine.RankID("r-pm"), id)

	// Upsert renames in place.
	require.NoError(t, s.SaveRank(ctx, engine.Rank{ID: "r-pm", Name: "Project Management", IsPM: true, CreatedAt: now}))
	r, err := s.GetRank(ctx, "r-pm")
	require.NoError(t, err)
	assert.Equal(t, "Project Management", r.Name)
	assert.True(t, r.IsPM)

	_, err = s.GetRank(ctx, "missing")
	assert.ErrorIs(t, err, engine.ErrRankNotFound)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestSQLite_WithTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedMasters(t, s)

	failed := assert.AnError
	err := s.WithTx(ctx, func(tx engine.Store) error {
		if err := tx.CreateAssignment(ctx, testAssignment("a1", "c1", "s1", "r1", "2025-06")); err != nil {
			return err
		}
		if _, err := tx.ReplaceClientInvoice(ctx, engine.ClientMonthlyInvoice{
			ID: "inv-1", ClientID: "c1", TargetMonth: month("2025-06"),
			TotalAmount: decimal.NewFromInt(1000), Status: engine.InvoiceDraft,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		return failed
	})
	require.ErrorIs(t, err, failed)

	_, err = s.GetAssignment(ctx, "a1")
	assert.ErrorIs(t, err, engine.ErrAssignmentNotFound, "write rolled back")
	_, err = s.GetClientInvoice(ctx, "c1", month("2025-06"))
	assert.ErrorIs(t, err, engine.ErrSnapshotNotFound)
}

func TestSQLite_WithTxCommitsAndReadsItsOwnWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedMasters(t, s)

	err := s.WithTx(ctx, func(tx engine.Store) error {
		if err := tx.CreateAssignment(ctx, testAssignment("a1", "c1", "s1", "r1", "2025-06")); err != nil {
			return err
		}
		// Reads inside the transaction see the uncommitted row.
		got, err := tx.GetAssignment(ctx, "a1")
		if err != nil {
			return err
		}
		assert.Equal(t, engine.AssignmentID("a1"), got.ID)
		return nil
	})
	require.NoError(t, err)

	got, err := s.GetAssignment(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, engine.AssignmentID("a1"), got.ID)
}
