package workforce

import (
	"fmt"
	"time"
)

// Period is one calendar month. Payroll, productivity and month locks are
// all keyed by it.
type Period struct {
	Year  int
	Month time.Month
}

// NewPeriod validates year and month (1-12).
func NewPeriod(year, month int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, badRequest(ReasonInvalidInput, "month must be between 1 and 12, got %d", month)
	}
	if year < 1900 || year > 9999 {
		return Period{}, badRequest(ReasonInvalidInput, "year %d is out of range", year)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// MustPeriod is NewPeriod for constants and tests.
func MustPeriod(year, month int) Period {
	p, err := NewPeriod(year, month)
	if err != nil {
		panic(err)
	}
	return p
}

// PeriodOf returns the month containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Start is the first day of the month, midnight UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the last day of the month, midnight UTC.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, -1)
}

// Days returns the number of days in the month.
func (p Period) Days() int { return p.End().Day() }

// Date returns the given day of the month. ok is false when day is outside
// the month.
func (p Period) Date(day int) (time.Time, bool) {
	if day < 1 || day > p.Days() {
		return time.Time{}, false
	}
	return time.Date(p.Year, p.Month, day, 0, 0, 0, 0, time.UTC), true
}

// Contains reports whether t falls within the month.
func (p Period) Contains(t time.Time) bool { return PeriodOf(t) == p }

func (p Period) String() string { return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month)) }

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
