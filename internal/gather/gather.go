// Package gather warms the local price cache ahead of backtest traffic.
package gather

import (
	"context"
	"fmt"
	"strings"
	"time"

	"basket/internal/domain"
)

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs one gathering pass and returns when it is done or ctx is
	// cancelled.
	Run(ctx context.Context) error
}

// DateRange represents a time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// LastYears returns the range covering the given number of years up to now.
func LastYears(now time.Time, years int) DateRange {
	end := domain.Day(now)
	return DateRange{Start: end.AddDate(-years, 0, 0), End: end}
}

// ParseTarget parses "CODE:MARKET", e.g. "7203.T:JP" or "^GSPC:US".
func ParseTarget(s string) (domain.Symbol, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return domain.Symbol{}, fmt.Errorf("target %q: want CODE:MARKET", s)
	}
	m, err := domain.ParseMarket(s[i+1:])
	if err != nil {
		return domain.Symbol{}, fmt.Errorf("target %q: %w", s, err)
	}
	return domain.Symbol{Code: strings.TrimSpace(s[:i]), Market: m}, nil
}

// ParseTargets parses every entry with ParseTarget.
func ParseTargets(ss []string) ([]domain.Symbol, error) {
	out := make([]domain.Symbol, 0, len(ss))
	for _, s := range ss {
		sym, err := ParseTarget(s)
		if err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, nil
}
