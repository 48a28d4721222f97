// Package recurrence projects stored transactions onto calendar months.
//
// Fixed templates become one virtual occurrence per month from their start
// date onward. Installment groups are materialized up front as stored
// records, one per step of the chosen frequency.
package recurrence

import (
	"fmt"
	"time"

	"carteira/internal/core"
)

// Month is a calendar month in UTC.
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", core.ErrInvalidMonth, s)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// Start is the first instant of the month.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the first instant of the following month.
func (m Month) End() time.Time {
	return m.Start().AddDate(0, 1, 0)
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Add returns the month n months after m (n may be negative).
func (m Month) Add(n int) Month {
	return MonthOf(time.Date(m.Year, m.Month+time.Month(n), 1, 0, 0, 0, 0, time.UTC))
}

// Days is the number of days in the month.
func (m Month) Days() int {
	return daysIn(m.Year, m.Month)
}

// Contains reports whether d falls inside the month.
func (m Month) Contains(d core.Date) bool {
	return !d.Before(m.Start()) && d.Before(m.End())
}

// Before reports whether m is strictly earlier than o.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// Day returns the given day of the month, clamped to the month length.
func (m Month) Day(day int) core.Date {
	if last := m.Days(); day > last {
		day = last
	}
	return core.NewDate(m.Year, int(m.Month), day)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
