package backtest

import (
	"errors"
	"math"
	"testing"
	"time"
)

func matrix(dates []time.Time, cols ...[]float64) *Matrix {
	m := &Matrix{Dates: dates, BenchmarkSymbol: usSym("^GSPC")}
	for j := range cols {
		m.Symbols = append(m.Symbols, usSym(string(rune('A'+j))))
	}
	for i := range dates {
		row := make([]float64, len(cols))
		for j, c := range cols {
			row[j] = c[i]
		}
		m.Prices = append(m.Prices, row)
		m.Benchmark = append(m.Benchmark, 1000+float64(i))
	}
	return m
}

func TestValuateBuyAndHold(t *testing.T) {
	dates := []time.Time{d(2024, 1, 2), d(2024, 1, 3), d(2024, 1, 4)}
	m := matrix(dates, []float64{100, 110, 120}, []float64{200, 190, 180})

	vs, err := Valuate(m, []float64{60, 40}, 100, RebalanceNone)
	if err != nil {
		t.Fatalf("Valuate returned error: %v", err)
	}
	if vs[0].Value != 100 {
		t.Errorf("value[0] = %v, want exactly 100", vs[0].Value)
	}
	// 0.6 shares of A, 0.2 shares of B.
	want := []float64{100, 0.6*110 + 0.2*190, 0.6*120 + 0.2*180}
	for i, w := range want {
		if !approx(vs[i].Value, w, 1e-9) {
			t.Errorf("value[%d] = %v, want %v", i, vs[i].Value, w)
		}
	}
}

func TestValuateSingleSymbolIsProportional(t *testing.T) {
	dates := weekdaysEndingAt(d(2024, 6, 28), 120)
	prices := make([]float64, len(dates))
	for i := range prices {
		prices[i] = 50 + 10*math.Sin(float64(i)/7) + float64(i)/10
	}
	m := matrix(dates, prices)

	vs, err := Valuate(m, []float64{100}, 100, RebalanceNone)
	if err != nil {
		t.Fatalf("Valuate returned error: %v", err)
	}
	for i := range vs {
		if got, want := vs[i].Value/vs[0].Value, prices[i]/prices[0]; !approx(got, want, 1e-12) {
			t.Fatalf("value[%d]/value[0] = %v, want price ratio %v", i, got, want)
		}
	}
}

func TestValuateFlatPriceIsFlat(t *testing.T) {
	dates := weekdaysEndingAt(d(2024, 6, 28), 252)
	for _, price := range []float64{3, 7, 37.3, 49.9, 0.1 + 0.2, 1234.56} {
		prices := make([]float64, len(dates))
		for i := range prices {
			prices[i] = price
		}
		for _, rb := range []Rebalance{RebalanceNone, RebalanceDaily, RebalanceMonthly} {
			vs, err := Valuate(matrix(dates, prices), []float64{100}, 100, rb)
			if err != nil {
				t.Fatalf("Valuate(%v, %s) returned error: %v", price, rb, err)
			}
			for i, p := range vs {
				if p.Value != 100 {
					t.Fatalf("price %v, %s: value[%d] = %v, want exactly 100", price, rb, i, p.Value)
				}
			}
			m, err := ComputeMetrics(vs, DefaultConventions())
			if err != nil {
				t.Fatal(err)
			}
			if m.SharpeRatio != 0 || m.MaxDrawdown != 0 || m.CumulativeReturn != 0 {
				t.Errorf("price %v, %s: metrics = %+v, want all zero", price, rb, m)
			}
		}
	}
}

func TestValuateMonthlyRebalance(t *testing.T) {
	dates := []time.Time{d(2024, 1, 30), d(2024, 1, 31), d(2024, 2, 1), d(2024, 2, 2)}
	m := matrix(dates, []float64{100, 200, 200, 400}, []float64{100, 100, 100, 100})

	hold, err := Valuate(m, []float64{50, 50}, 100, RebalanceNone)
	if err != nil {
		t.Fatalf("Valuate(none) returned error: %v", err)
	}
	monthly, err := Valuate(m, []float64{50, 50}, 100, RebalanceMonthly)
	if err != nil {
		t.Fatalf("Valuate(monthly) returned error: %v", err)
	}

	if !approx(hold[3].Value, 250, 1e-9) {
		t.Errorf("buy-and-hold final value = %v, want 250", hold[3].Value)
	}
	// Reset to 50/50 at the 2024-02-01 close: 0.375 A + 0.75 B.
	if !approx(monthly[2].Value, 150, 1e-9) || !approx(monthly[3].Value, 225, 1e-9) {
		t.Errorf("monthly values = %v, want [.. 150 225]", values(monthly))
	}
}

func TestValuateDailyRebalanceKeepsWeights(t *testing.T) {
	dates := []time.Time{d(2024, 1, 2), d(2024, 1, 3), d(2024, 1, 4)}
	m := matrix(dates, []float64{100, 200, 100}, []float64{100, 100, 100})

	vs, err := Valuate(m, []float64{50, 50}, 100, RebalanceDaily)
	if err != nil {
		t.Fatalf("Valuate returned error: %v", err)
	}
	// Day 1: 150, reset to 75/75. Day 2: A halves, 37.5 + 75.
	if !approx(vs[1].Value, 150, 1e-9) || !approx(vs[2].Value, 112.5, 1e-9) {
		t.Errorf("values = %v, want [100 150 112.5]", values(vs))
	}
}

func TestValuateInvalidAnchorPrice(t *testing.T) {
	dates := []time.Time{d(2024, 1, 2), d(2024, 1, 3)}
	m := matrix(dates, []float64{0, 10}, []float64{100, 100})

	_, err := Valuate(m, []float64{50, 50}, 100, RebalanceNone)
	var ipe *InvalidPriceError
	if !errors.As(err, &ipe) {
		t.Fatalf("error = %v, want InvalidPriceError", err)
	}
	if ipe.Symbol != "A" || !ipe.Date.Equal(dates[0]) {
		t.Errorf("InvalidPriceError = %+v", ipe)
	}

	m.Benchmark[0] = -1
	if _, err := ValuateBenchmark(m, 100); !errors.As(err, &ipe) {
		t.Errorf("benchmark error = %v, want InvalidPriceError", err)
	}
}

func TestValuateBenchmark(t *testing.T) {
	dates := []time.Time{d(2024, 1, 2), d(2024, 1, 3)}
	m := matrix(dates, []float64{1, 1})
	m.Benchmark = []float64{4000, 4400}

	vs, err := ValuateBenchmark(m, 100)
	if err != nil {
		t.Fatalf("ValuateBenchmark returned error: %v", err)
	}
	if vs[0].Value != 100 || !approx(vs[1].Value, 110, 1e-9) {
		t.Errorf("values = %v, want [100 110]", values(vs))
	}
}

func TestNormalizeWeights(t *testing.T) {
	got, err := NormalizeWeights([]float64{60, 40})
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 0.6 || got[1] != 0.4 {
		t.Errorf("NormalizeWeights = %v", got)
	}
	if _, err := NormalizeWeights([]float64{0, 0}); err == nil {
		t.Error("all-zero weights should fail")
	}
	var ve *ValidationError
	if _, err := NormalizeWeights([]float64{-1, 101}); !errors.As(err, &ve) {
		t.Errorf("negative weight error = %v", err)
	}
}
