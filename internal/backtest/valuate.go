package backtest

import (
	"fmt"
	"math"
	"time"
)

// Rebalance is the frequency at which holdings are reset to target weights.
type Rebalance string

const (
	// RebalanceNone is buy-and-hold: shares are fixed on day 0 and weights
	// drift with relative price moves.
	RebalanceNone    Rebalance = "none"
	RebalanceDaily   Rebalance = "daily"
	RebalanceMonthly Rebalance = "monthly"
)

// ParseRebalance validates a rebalance frequency. Empty selects none.
func ParseRebalance(s string) (Rebalance, error) {
	switch r := Rebalance(s); r {
	case "":
		return RebalanceNone, nil
	case RebalanceNone, RebalanceDaily, RebalanceMonthly:
		return r, nil
	}
	return "", fmt.Errorf("unknown rebalance frequency %q", s)
}

// ValuePoint is one day of a value curve.
type ValuePoint struct {
	Date  time.Time
	Value float64
}

// ValueSeries is a value curve starting at the initial capital.
type ValueSeries []ValuePoint


// NormalizeWeights converts percentage weights into fractions summing to 1.
func NormalizeWeights(weights []float64) ([]float64, error) {
	var sum float64
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, &ValidationError{Reason: fmt.Sprintf("invalid weight %v", w)}
		}
		sum += w
	}
	if sum <= 0 {
		return nil, &ValidationError{Reason: "weights sum to zero"}
	}
	out := make([]float64, len(weights))
	for i, w := range weights {
		out[i] = w / sum
	}
	return out, nil
}

// Valuate computes the daily value of the weighted portfolio over m,
// starting at capital. weights are percentages in column order.
func Valuate(m *Matrix, weights []float64, capital float64, rb Rebalance) (ValueSeries, error) {
	if len(weights) != len(m.Symbols) {
		return nil, fmt.Errorf("valuate: %d weights for %d symbols", len(weights), len(m.Symbols))
	}
	if m.Rows() == 0 {
		return nil, &InsufficientDataError{Reason: "no aligned prices"}
	}
	frac, err := NormalizeWeights(weights)
	if err != nil {
		return nil, err
	}

	// Holdings are tracked as price relatives against the anchor row so an
	// unchanged price reproduces the anchor value exactly.
	anchor, base := 0, capital
	if err := checkAnchor(m, anchor); err != nil {
		return nil, err
	}

	out := make(ValueSeries, m.Rows())
	out[0] = ValuePoint{Date: m.Dates[0], Value: capital}
	for t := 1; t < m.Rows(); t++ {
		var growth float64
		for j, p := range m.Prices[t] {
			growth += frac[j] * (p / m.Prices[anchor][j])
		}
		v := base * growth
		out[t] = ValuePoint{Date: m.Dates[t], Value: v}

		if rebalanceDue(rb, m.Dates[t-1], m.Dates[t]) {
			if err := checkAnchor(m, t); err != nil {
				return nil, err
			}
			anchor, base = t, v
		}
	}
	return out, nil
}

// ValuateBenchmark computes the buy-and-hold value of the benchmark column.
func ValuateBenchmark(m *Matrix, capital float64) (ValueSeries, error) {
	if m.Rows() == 0 {
		return nil, &InsufficientDataError{Reason: "no aligned prices"}
	}
	p0 := m.Benchmark[0]
	if !validAnchor(p0) {
		return nil, &InvalidPriceError{Symbol: m.BenchmarkSymbol.Code, Date: m.Dates[0], Price: p0}
	}
	out := make(ValueSeries, m.Rows())
	out[0] = ValuePoint{Date: m.Dates[0], Value: capital}
	for t := 1; t < m.Rows(); t++ {
		out[t] = ValuePoint{Date: m.Dates[t], Value: capital * (m.Benchmark[t] / p0)}
	}
	return out, nil
}

// checkAnchor rejects row t as a reference row when any price is unusable.
func checkAnchor(m *Matrix, t int) error {
	for j, p := range m.Prices[t] {
		if !validAnchor(p) {
			return &InvalidPriceError{Symbol: m.Symbols[j].Code, Date: m.Dates[t], Price: p}
		}
	}
	return nil
}

func rebalanceDue(rb Rebalance, prev, cur time.Time) bool {
	switch rb {
	case RebalanceDaily:
		return true
	case RebalanceMonthly:
		return prev.Year() != cur.Year() || prev.Month() != cur.Month()
	}
	return false
}

func validAnchor(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}
