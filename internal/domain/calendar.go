package domain

import (
	"fmt"
	"time"
)

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Period is a calendar month in "YYYY-MM" form; the accrual key of a rent charge.
type Period string

// PeriodDeposit keys the one-off deposit charge of a lease.
const PeriodDeposit Period = "deposit"

func PeriodOf(t time.Time) Period {
	return Period(t.UTC().Format("2006-01"))
}

func ParsePeriod(s string) (Period, error) {
	if _, err := time.Parse("2006-01", s); err != nil {
		return "", fmt.Errorf("parse period %q: %w", s, ErrInvalidInput)
	}
	return Period(s), nil
}

// Start returns the first day of the month.
func (p Period) Start() time.Time {
	t, err := time.Parse("2006-01", string(p))
	if err != nil {
		return time.Time{}
	}
	return t
}

// End returns the last day of the month.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, -1)
}
