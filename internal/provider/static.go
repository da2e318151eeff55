package provider

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"basket/internal/domain"
)

// Compile-time interface check.
var _ Provider = (*Static)(nil)

// Static serves fixed in-memory series keyed by symbol code. It counts calls
// and can inject per-symbol errors, which makes it the fixture provider for
// tests and offline runs.
type Static struct {
	mu     sync.RWMutex
	series map[string]domain.PriceSeries
	errs   map[string]error
	calls  atomic.Int64
}

// NewStatic creates a Static provider from the given series.
func NewStatic(series ...domain.PriceSeries) *Static {
	s := &Static{
		series: make(map[string]domain.PriceSeries),
		errs:   make(map[string]error),
	}
	for _, ps := range series {
		s.series[ps.Symbol.Code] = ps
	}
	return s
}

// FailWith makes every request for code return err. A nil err clears it.
func (s *Static) FailWith(code string, err error) {
	s.mu.Lock()
	if err == nil {
		delete(s.errs, code)
	} else {
		s.errs[code] = err
	}
	s.mu.Unlock()
}

// Calls returns the number of DailySeries invocations so far.
func (s *Static) Calls() int { return int(s.calls.Load()) }

// DailySeries returns the stored series clipped to [from, to].
func (s *Static) DailySeries(ctx context.Context, sym domain.Symbol, from, to time.Time) (domain.PriceSeries, error) {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return domain.PriceSeries{}, err
	}

	s.mu.RLock()
	ps, ok := s.series[sym.Code]
	err := s.errs[sym.Code]
	s.mu.RUnlock()

	if err != nil {
		return domain.PriceSeries{}, err
	}
	if !ok {
		return domain.PriceSeries{}, fmt.Errorf("%s: %w", sym.Code, ErrUnknownSymbol)
	}
	out := ps.Between(from, to)
	out.Symbol = sym
	if out.Len() == 0 {
		return domain.PriceSeries{}, fmt.Errorf("%s: %w", sym.Code, ErrEmptyRange)
	}
	return out, nil
}
