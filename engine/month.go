package engine

import (
	"fmt"
	"regexp"
	"time"
)

// =============================================================================
// MONTH - The "YYYY-MM" billing period
// =============================================================================

// Month is one billing period. The persisted and wire form is always the
// literal string "YYYY-MM" (four-digit year, zero-padded two-digit month),
// which compares lexicographically in chronological order and doubles as a
// storage key component.
type Month struct {
	Year int
	Mon  time.Month
}

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ParseMonth parses the canonical "YYYY-MM" form.
func ParseMonth(s string) (Month, error) {
	if !monthPattern.MatchString(s) {
		return Month{}, &MonthFormatError{Input: s}
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, &MonthFormatError{Input: s}
	}
	return Month{Year: t.Year(), Mon: t.Month()}, nil
}

// MustMonth parses s and panics on malformed input. Test helper.
func MustMonth(s string) Month {
	m, err := ParseMonth(s)
	if err != nil {
		panic(err)
	}
	return m
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Mon: t.Month()}
}

// String renders the canonical "YYYY-MM" form.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Mon))
}

// Index is the absolute month number (year*12 + month), the basis for
// consecutive-run detection.
func (m Month) Index() int { return m.Year*12 + int(m.Mon) - 1 }

// AddMonths returns the month n months after m (n may be negative).
func (m Month) AddMonths(n int) Month {
	idx := m.Index() + n
	return Month{Year: idx / 12, Mon: time.Month(idx%12 + 1)}
}

// Comparison
func (m Month) Before(other Month) bool { return m.Index() < other.Index() }
func (m Month) After(other Month) bool  { return m.Index() > other.Index() }
func (m Month) Equal(other Month) bool  { return m.Index() == other.Index() }
func (m Month) IsZero() bool            { return m.Year == 0 && m.Mon == 0 }

// Period returns the first and last instant of the month, for work-record
// range queries.
func (m Month) Period() (time.Time, time.Time) {
	start := time.Date(m.Year, m.Mon, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// =============================================================================
// MONTH CLAMP - No speculative future accrual
// =============================================================================

// Clamp normalizes a requested target month so it never exceeds the month
// after today's: the lesser of requested and current month + 1. Every other
// component applies this before touching the store.
func Clamp(requested Month, today time.Time) Month {
	ceiling := MonthOf(today).AddMonths(1)
	if requested.After(ceiling) {
		return ceiling
	}
	return requested
}

// =============================================================================
// CLOCK - Injectable current time
// =============================================================================

// Clock supplies the current date, used only by the month clamp.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant. For tests and replays.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }
