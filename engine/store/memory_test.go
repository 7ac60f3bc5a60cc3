package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assignia/staffing-engine/engine"
	"github.com/assignia/staffing-engine/engine/store"
)

func month(s string) engine.Month { return engine.MustMonth(s) }

func testAssignment(id, client, secretary, rank, m string) engine.AssignmentRecord {
	return engine.AssignmentRecord{
		ID:          engine.AssignmentID(id),
		ClientID:    engine.ClientID(client),
		SecretaryID: engine.SecretaryID(secretary),
		RankID:      engine.RankID(rank),
		TargetMonth: month(m),
		Status:      engine.AssignmentActive,
		CreatedAt:   time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestMemory_DuplicateActiveKeyRejected(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.CreateAssignment(ctx, testAssignment("a1", "c1", "s1", "r1", "2025-06")))

	err := mem.CreateAssignment(ctx, testAssignment("a2", "c1", "s1", "r1", "2025-06"))
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrDuplicateAssignment)

	// A different month is fine.
	assert.NoError(t, mem.CreateAssignment(ctx, testAssignment("a3", "c1", "s1", "r1", "2025-07")))

	// After soft deletion the key is free again.
	require.NoError(t, mem.SoftDeleteAssignment(ctx, "a1", time.Now()))
	assert.NoError(t, mem.CreateAssignment(ctx, testAssignment("a4", "c1", "s1", "r1", "2025-06")))
}

func TestMemory_PresenceMonthsSortedAndDeduplicated(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	// Two ranks share the months; presence is keyed, so only r1 counts.
	require.NoError(t, mem.CreateAssignment(ctx, testAssignment("a1", "c1", "s1", "r1", "2025-06")))
	require.NoError(t, mem.CreateAssignment(ctx, testAssignment("a2", "c1", "s1", "r1", "2025-04")))
	require.NoError(t, mem.CreateAssignment(ctx, testAssignment("a3", "c1", "s1", "r2", "2025-05")))
	require.NoError(t, mem.CreateAssignment(ctx, testAssignment("a4", "c1", "s1", "r1", "2025-08")))

	months, err := mem.PresenceMonths(ctx,
		engine.ContinuityKey{ClientID: "c1", SecretaryID: "s1", RankID: "r1"}, month("2025-07"))
	require.NoError(t, err)
	assert.Equal(t, []engine.Month{month("2025-04"), month("2025-06")}, months,
		"sorted ascending, other ranks and months beyond upTo excluded")
}

func TestMemory_ReplaceInvoiceKeepsRowIdentity(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	first, err := mem.ReplaceClientInvoice(ctx, engine.ClientMonthlyInvoice{
		ID: "inv-1", ClientID: "c1", TargetMonth: month("2025-06"),
		TotalAmount: decimal.NewFromInt(1000), Status: engine.InvoiceDraft,
		CreatedAt: time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	second, err := mem.ReplaceClientInvoice(ctx, engine.ClientMonthlyInvoice{
		ID: "inv-2", ClientID: "c1", TargetMonth: month("2025-06"),
		TotalAmount: decimal.NewFromInt(2500), Status: engine.InvoiceDraft,
		CreatedAt: time.Date(2025, time.July, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "conflict keeps the original id")
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.TotalAmount.Equal(decimal.NewFromInt(2500)), "totals overwritten")

	list, err := mem.ListClientInvoices(ctx, month("2025-06"))
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMemory_WithTxRollsBackOnError(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	boom := errors.New("boom")

	err := mem.WithTx(ctx, func(s engine.Store) error {
		if err := s.CreateAssignment(ctx, testAssignment("a1", "c1", "s1", "r1", "2025-06")); err != nil {
			return err
		}
		if _, err := s.ReplaceClientInvoice(ctx, engine.ClientMonthlyInvoice{
			ID: "inv-1", ClientID: "c1", TargetMonth: month("2025-06"),
			TotalAmount: decimal.NewFromInt(1000),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = mem.GetAssignment(ctx, "a1")
	assert.ErrorIs(t, err, engine.ErrAssignmentNotFound, "write rolled back")
	_, err = mem.GetClientInvoice(ctx, "c1", month("2025-06"))
	assert.ErrorIs(t, err, engine.ErrSnapshotNotFound, "snapshot rolled back")
}

func TestMemory_WithTxCommitsOnSuccess(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	err := mem.WithTx(ctx, func(s engine.Store) error {
		return s.CreateAssignment(ctx, testAssignment("a1", "c1", "s1", "r1", "2025-06"))
	})
	require.NoError(t, err)

	got, err := mem.GetAssignment(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, engine.AssignmentID("a1"), got.ID)
}
