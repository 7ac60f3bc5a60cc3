package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assignia/staffing-engine/engine"
)

// =============================================================================
// PARSING
// =============================================================================

func TestParseMonth_Canonical(t *testing.T) {
	m, err := engine.ParseMonth("2025-06")
	require.NoError(t, err)
	assert.Equal(t, 2025, m.Year)
	assert.Equal(t, time.June, m.Mon)
	assert.Equal(t, "2025-06", m.String())
}

func TestParseMonth_RejectsNonCanonicalForms(t *testing.T) {
	// Only the literal "YYYY-MM" form is accepted; anything else is a
	// validation error before any store access.
	for _, input := range []string{
		"", "2025", "2025-6", "2025-13", "2025-00", "25-06",
		"2025/06", "2025-06-01", " 2025-06", "2025-06 ",
	} {
		_, err := engine.ParseMonth(input)
		assert.Error(t, err, "input %q", input)
		assert.ErrorIs(t, err, engine.ErrInvalidMonth, "input %q", input)
	}
}

func TestParseMonth_ErrorCarriesInput(t *testing.T) {
	_, err := engine.ParseMonth("junk")
	var ferr *engine.MonthFormatError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "junk", ferr.Input)
}

// =============================================================================
// ARITHMETIC
// =============================================================================

func TestMonth_AddMonths_CrossesYearBoundary(t *testing.T) {
	assert.Equal(t, mm("2026-01"), mm("2025-12").AddMonths(1))
	assert.Equal(t, mm("2024-11"), mm("2025-02").AddMonths(-3))
	assert.Equal(t, mm("2027-03"), mm("2025-03").AddMonths(24))
}

func TestMonth_Index_IsMonotonic(t *testing.T) {
	assert.Equal(t, mm("2025-01").Index()+1, mm("2025-02").Index())
	assert.Equal(t, mm("2024-12").Index()+1, mm("2025-01").Index())
	assert.True(t, mm("2025-01").Before(mm("2025-02")))
	assert.True(t, mm("2025-02").After(mm("2025-01")))
}

func TestMonth_Period_CoversWholeMonth(t *testing.T) {
	start, end := mm("2025-02").Period()
	assert.Equal(t, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.February, end.Month())
	assert.Equal(t, 28, end.Day())
}

// =============================================================================
// CLAMP
// =============================================================================

func TestClamp_FutureMonthsLimitedToNext(t *testing.T) {
	// GIVEN: today is 2025-06-15
	// THEN: anything beyond 2025-07 clamps to 2025-07
	today := testClock.Now()

	assert.Equal(t, mm("2025-07"), engine.Clamp(mm("2025-08"), today))
	assert.Equal(t, mm("2025-07"), engine.Clamp(mm("2030-01"), today))
}

func TestClamp_CurrentAndPastMonthsUnchanged(t *testing.T) {
	today := testClock.Now()

	assert.Equal(t, mm("2025-07"), engine.Clamp(mm("2025-07"), today))
	assert.Equal(t, mm("2025-06"), engine.Clamp(mm("2025-06"), today))
	assert.Equal(t, mm("2020-01"), engine.Clamp(mm("2020-01"), today))
}

func TestClamp_YearBoundary(t *testing.T) {
	// In December the ceiling is January of the next year.
	december := time.Date(2025, time.December, 20, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, mm("2026-01"), engine.Clamp(mm("2026-05"), december))
}
