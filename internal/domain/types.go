// Package domain defines the core value types shared across the backtest
// service: markets, symbols, daily price series and portfolio items.
package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DateFormat is the wire and storage format for trading dates.
const DateFormat = "2006-01-02"

// Market identifies the exchange group a security trades on.
type Market string

const (
	MarketJP Market = "JP"
	MarketUS Market = "US"
)

// ParseMarket accepts "JP" or "US" in any case.
func ParseMarket(s string) (Market, error) {
	switch Market(strings.ToUpper(strings.TrimSpace(s))) {
	case MarketJP:
		return MarketJP, nil
	case MarketUS:
		return MarketUS, nil
	}
	return "", fmt.Errorf("unknown market %q", s)
}

// Symbol is an immutable security identifier tagged with its market.
type Symbol struct {
	Code   string
	Market Market
}

// IsIndex reports whether the symbol names an index (Yahoo-style "^" prefix).
func (s Symbol) IsIndex() bool { return strings.HasPrefix(s.Code, "^") }

func (s Symbol) String() string { return s.Code }

// Stock is a catalogue entry as exchanged with the client.
type Stock struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Market Market `json:"market"`
}

// Symbol projects the stock onto its identifier.
func (s Stock) Symbol() Symbol { return Symbol{Code: s.Code, Market: s.Market} }

// PortfolioItem is one constituent of a portfolio. Weight is a percentage
// in [0, 100]; the sum-to-100 rule is enforced by the backtest engine.
type PortfolioItem struct {
	Stock  Stock   `json:"stock"`
	Weight float64 `json:"weight"`
}

// PricePoint is a single daily close. Date is normalized with Day.
type PricePoint struct {
	Date  time.Time
	Close float64
}

// PriceSeries is the ordered daily close history of one symbol.
type PriceSeries struct {
	Symbol Symbol
	Points []PricePoint
}

// Len returns the number of points.
func (s PriceSeries) Len() int { return len(s.Points) }

// First returns the earliest date, or the zero time for an empty series.
func (s PriceSeries) First() time.Time {
	if len(s.Points) == 0 {
		return time.Time{}
	}
	return s.Points[0].Date
}

// Last returns the latest date, or the zero time for an empty series.
func (s PriceSeries) Last() time.Time {
	if len(s.Points) == 0 {
		return time.Time{}
	}
	return s.Points[len(s.Points)-1].Date
}

// Validate checks that dates are strictly increasing and closes are finite
// and non-negative.
func (s PriceSeries) Validate() error {
	for i, p := range s.Points {
		if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) || p.Close < 0 {
			return fmt.Errorf("%s: invalid close %v on %s", s.Symbol.Code, p.Close, p.Date.Format(DateFormat))
		}
		if i > 0 && !p.Date.After(s.Points[i-1].Date) {
			return fmt.Errorf("%s: dates not strictly increasing at %s", s.Symbol.Code, p.Date.Format(DateFormat))
		}
	}
	return nil
}

// Between returns the points whose date falls within [from, to]. A zero
// bound is open.
func (s PriceSeries) Between(from, to time.Time) PriceSeries {
	out := PriceSeries{Symbol: s.Symbol}
	for _, p := range s.Points {
		if !from.IsZero() && p.Date.Before(from) {
			continue
		}
		if !to.IsZero() && p.Date.After(to) {
			continue
		}
		out.Points = append(out.Points, p)
	}
	return out
}

// Day truncates t to midnight UTC of its calendar date in t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Bar is a daily OHLCV record as persisted by the price cache.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}
