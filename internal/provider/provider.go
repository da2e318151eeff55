// Package provider defines the Price Provider boundary of the backtest
// engine and its concrete market-data sources.
package provider

import (
	"context"
	"errors"
	"time"

	"basket/internal/domain"
)

// Provider returns daily closing prices for one symbol within [from, to].
// Implementations must return a series that passes domain.PriceSeries.Validate.
type Provider interface {
	DailySeries(ctx context.Context, sym domain.Symbol, from, to time.Time) (domain.PriceSeries, error)
}

// Func adapts a function to the Provider interface.
type Func func(ctx context.Context, sym domain.Symbol, from, to time.Time) (domain.PriceSeries, error)

// DailySeries calls f.
func (f Func) DailySeries(ctx context.Context, sym domain.Symbol, from, to time.Time) (domain.PriceSeries, error) {
	return f(ctx, sym, from, to)
}

// Error kinds every provider maps its failures onto. Wrap them with
// fmt.Errorf("...: %w", ErrX) so callers can use errors.Is.
var (
	// ErrUnknownSymbol means the source does not know the symbol at all.
	ErrUnknownSymbol = errors.New("unknown symbol")
	// ErrEmptyRange means the symbol exists but has no closes in the range.
	ErrEmptyRange = errors.New("no prices in range")
	// ErrRejected means the source refused the request itself, for example
	// an authorization failure. Retrying the same request will not help.
	ErrRejected = errors.New("price source rejected the request")
	// ErrUnavailable marks transient failures: network errors, rate limits,
	// 5xx responses, an open circuit breaker.
	ErrUnavailable = errors.New("price source unavailable")
)

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
