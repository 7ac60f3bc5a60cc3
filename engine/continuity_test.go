package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assignia/staffing-engine/engine"
)

// =============================================================================
// PURE ISLAND DETECTION
// =============================================================================

func months(ss ...string) []engine.Month {
	out := make([]engine.Month, len(ss))
	for i, s := range ss {
		out[i] = mm(s)
	}
	return out
}

func TestConsecutiveRun_Table(t *testing.T) {
	tests := []struct {
		name    string
		present []string
		end     string
		want    int
	}{
		{"empty presence set", nil, "2025-06", 0},
		{"end month absent", []string{"2025-01", "2025-02"}, "2025-06", 0},
		{"single month", []string{"2025-06"}, "2025-06", 1},
		{"unbroken run", []string{"2025-03", "2025-04", "2025-05", "2025-06"}, "2025-06", 4},
		{"gap resets the count", []string{"2025-01", "2025-02", "2025-04", "2025-05", "2025-06"}, "2025-06", 3},
		{"earlier island ignored", []string{"2024-01", "2024-02", "2024-03", "2025-06"}, "2025-06", 1},
		{"counts at interior end", []string{"2025-01", "2025-02", "2025-03"}, "2025-02", 2},
		{"months after end excluded", []string{"2025-05", "2025-06", "2025-07", "2025-08"}, "2025-06", 2},
		{"duplicates ignored", []string{"2025-05", "2025-05", "2025-06", "2025-06"}, "2025-06", 2},
		{"run across year boundary", []string{"2024-11", "2024-12", "2025-01"}, "2025-01", 3},
		{"unsorted input", []string{"2025-06", "2025-04", "2025-05"}, "2025-06", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.ConsecutiveRun(months(tt.present...), mm(tt.end))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConsecutiveRun_AdditiveMonthByMonth(t *testing.T) {
	// Registering each next month extends the count by exactly one.
	var present []engine.Month
	current := mm("2025-01")
	for i := 1; i <= 6; i++ {
		present = append(present, current)
		assert.Equal(t, i, engine.ConsecutiveRun(present, current))
		current = current.AddMonths(1)
	}
}

// =============================================================================
// CONTINUITY TRACKER (store-backed)
// =============================================================================

func TestContinuityCount_CountsActiveAssignments(t *testing.T) {
	// GIVEN: acme x sato x r-std staffed 2025-01..03 and 2025-05..06
	// WHEN: asking for the count at various months
	// THEN: island sizes are reported; the gap month reports 0

	eng, _ := newTestEngine(t)
	ctx := context.Background()

	for _, m := range []string{"2025-01", "2025-02", "2025-03", "2025-05", "2025-06"} {
		register(t, eng, "acme", "sato", "r-std", m, "1000", "700")
	}
	key := engine.ContinuityKey{ClientID: "acme", SecretaryID: "sato", RankID: "r-std"}

	count, err := eng.ContinuityCount(ctx, key, mm("2025-06"))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = eng.ContinuityCount(ctx, key, mm("2025-03"))
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = eng.ContinuityCount(ctx, key, mm("2025-04"))
	require.NoError(t, err)
	assert.Equal(t, 0, count, "gap month has no active assignment")
}

func TestContinuityCount_KeyComponentsAreIndependent(t *testing.T) {
	// A different rank (or secretary, or client) is a different tenure track.
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	register(t, eng, "acme", "sato", "r-std", "2025-05", "1000", "700")
	register(t, eng, "acme", "sato", "r-std", "2025-06", "1000", "700")
	register(t, eng, "acme", "sato", "r-sr", "2025-06", "1500", "900")

	count, err := eng.ContinuityCount(ctx, engine.ContinuityKey{ClientID: "acme", SecretaryID: "sato", RankID: "r-std"}, mm("2025-06"))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = eng.ContinuityCount(ctx, engine.ContinuityKey{ClientID: "acme", SecretaryID: "sato", RankID: "r-sr"}, mm("2025-06"))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestContinuityCount_ClampsFarFutureRequests(t *testing.T) {
	// GIVEN: staffed through the clamp ceiling 2025-07
	// WHEN: asking for 2026-01
	// THEN: the count is evaluated at 2025-07, not 0

	eng, _ := newTestEngine(t)
	ctx := context.Background()

	register(t, eng, "acme", "sato", "r-std", "2025-06", "1000", "700")
	register(t, eng, "acme", "sato", "r-std", "2025-07", "1000", "700")
	key := engine.ContinuityKey{ClientID: "acme", SecretaryID: "sato", RankID: "r-std"}

	count, err := eng.ContinuityCount(ctx, key, mm("2026-01"))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestContinuityCount_IgnoresDeletedAssignments(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	register(t, eng, "acme", "sato", "r-std", "2025-05", "1000", "700")
	middle := register(t, eng, "acme", "sato", "r-std", "2025-06", "1000", "700")
	key := engine.ContinuityKey{ClientID: "acme", SecretaryID: "sato", RankID: "r-std"}

	count, err := eng.ContinuityCount(ctx, key, mm("2025-06"))
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.NoError(t, eng.Workflow.DeleteAssignment(ctx, middle.ID))

	count, err = eng.ContinuityCount(ctx, key, mm("2025-06"))
	require.NoError(t, err)
	assert.Equal(t, 0, count, "deleting the end month removes the tenure")
}
