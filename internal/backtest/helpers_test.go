package backtest

import (
	"math"
	"time"

	"basket/internal/domain"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func usSym(code string) domain.Symbol { return domain.Symbol{Code: code, Market: domain.MarketUS} }

func jpSym(code string) domain.Symbol { return domain.Symbol{Code: code, Market: domain.MarketJP} }

// weekdaysEndingAt returns the n weekdays up to and including end, oldest first.
func weekdaysEndingAt(end time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	for t := end; len(out) < n; t = t.AddDate(0, 0, -1) {
		if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
			continue
		}
		out = append(out, t)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// series builds a price series over dates with close(i).
func series(sym domain.Symbol, dates []time.Time, close func(i int) float64) domain.PriceSeries {
	ps := domain.PriceSeries{Symbol: sym}
	for i, dt := range dates {
		ps.Points = append(ps.Points, domain.PricePoint{Date: dt, Close: close(i)})
	}
	return ps
}

func valueSeries(start time.Time, values ...float64) ValueSeries {
	vs := make(ValueSeries, len(values))
	for i, v := range values {
		vs[i] = ValuePoint{Date: start.AddDate(0, 0, i), Value: v}
	}
	return vs
}

// values returns the bare values of vs in date order.
func values(vs ValueSeries) []float64 {
	out := make([]float64, len(vs))
	for i, p := range vs {
		out[i] = p.Value
	}
	return out
}

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }
