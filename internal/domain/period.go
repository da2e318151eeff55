package domain

import (
	"fmt"
	"time"
)

// Period is a lookback window ending today.
type Period string

const (
	Period1Y Period = "1y"
	Period3Y Period = "3y"
	Period5Y Period = "5y"
)

// ParsePeriod validates a period string.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case Period1Y, Period3Y, Period5Y:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Years returns the number of years covered, or 0 for an unknown period.
func (p Period) Years() int {
	switch p {
	case Period1Y:
		return 1
	case Period3Y:
		return 3
	case Period5Y:
		return 5
	}
	return 0
}

// Range resolves the period to [today - N years, today] relative to now.
func (p Period) Range(now time.Time) (from, to time.Time) {
	to = Day(now)
	from = to.AddDate(-p.Years(), 0, 0)
	return from, to
}
