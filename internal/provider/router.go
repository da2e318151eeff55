package provider

import (
	"context"
	"time"

	"basket/internal/domain"
)

// Compile-time interface check.
var _ Provider = (*Router)(nil)

// Router dispatches requests to a per-market provider. Indices go to
// Indices when set, regardless of market.
type Router struct {
	Default Provider
	Markets map[domain.Market]Provider
	Indices Provider
}

// DailySeries forwards to the provider selected for sym.
func (r *Router) DailySeries(ctx context.Context, sym domain.Symbol, from, to time.Time) (domain.PriceSeries, error) {
	return r.route(sym).DailySeries(ctx, sym, from, to)
}

func (r *Router) route(sym domain.Symbol) Provider {
	if sym.IsIndex() && r.Indices != nil {
		return r.Indices
	}
	if p, ok := r.Markets[sym.Market]; ok && p != nil {
		return p
	}
	return r.Default
}
