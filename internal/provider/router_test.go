package provider

import (
	"context"
	"testing"
	"time"

	"basket/internal/domain"
)

func TestRouter(t *testing.T) {
	var got string
	tag := func(name string) Provider {
		return Func(func(ctx context.Context, sym domain.Symbol, from, to time.Time) (domain.PriceSeries, error) {
			got = name
			return domain.PriceSeries{Symbol: sym}, nil
		})
	}
	r := &Router{
		Default: tag("default"),
		Markets: map[domain.Market]Provider{domain.MarketUS: tag("us")},
		Indices: tag("index"),
	}

	tests := []struct {
		sym  domain.Symbol
		want string
	}{
		{domain.Symbol{Code: "AAPL", Market: domain.MarketUS}, "us"},
		{domain.Symbol{Code: "^GSPC", Market: domain.MarketUS}, "index"},
		{domain.Symbol{Code: "7203.T", Market: domain.MarketJP}, "default"},
	}
	for _, tt := range tests {
		if _, err := r.DailySeries(context.Background(), tt.sym, time.Time{}, time.Time{}); err != nil {
			t.Fatalf("%s: %v", tt.sym.Code, err)
		}
		if got != tt.want {
			t.Errorf("%s routed to %q, want %q", tt.sym.Code, got, tt.want)
		}
	}
}
