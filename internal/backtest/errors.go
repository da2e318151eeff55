package backtest

import (
	"fmt"
	"time"

	"basket/internal/domain"
)

// ValidationError reports a request the caller can fix: bad weights, too many
// symbols, duplicates, an unknown period or symbol. Reason is shown to the
// end user as-is.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// InsufficientDataError reports that the price history cannot support a
// backtest: no overlap with the benchmark, fewer than two aligned days, or a
// zero-length period. Symbol is empty when no single symbol is at fault.
type InsufficientDataError struct {
	Symbol string
	Reason string
}

func (e *InsufficientDataError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("insufficient data for %s: %s", e.Symbol, e.Reason)
	}
	return "insufficient data: " + e.Reason
}

// InvalidPriceError reports a non-positive or non-finite anchor price.
type InvalidPriceError struct {
	Symbol string
	Date   time.Time
	Price  float64
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("invalid price for %s on %s: %v", e.Symbol, e.Date.Format(domain.DateFormat), e.Price)
}

// DataSourceError reports that the price source stayed unreachable after
// retries.
type DataSourceError struct {
	Symbol string
	Err    error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("price source failed for %s: %v", e.Symbol, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// TimeoutError reports that a run exceeded its deadline.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("backtest timed out after %s", e.Timeout)
}
