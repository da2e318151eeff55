package backtest

import (
	"fmt"
	"math"
)

// StdDevKind selects the standard deviation denominator.
type StdDevKind string

const (
	StdDevSample     StdDevKind = "sample"     // N-1
	StdDevPopulation StdDevKind = "population" // N
)

// ParseStdDevKind validates a denominator name. Empty selects sample.
func ParseStdDevKind(s string) (StdDevKind, error) {
	switch k := StdDevKind(s); k {
	case "":
		return StdDevSample, nil
	case StdDevSample, StdDevPopulation:
		return k, nil
	}
	return "", fmt.Errorf("unknown stddev kind %q", s)
}

// zeroStdDev is the relative dispersion below which daily returns are
// treated as constant.
const zeroStdDev = 1e-12

// Conventions are the annualization constants used by the metrics.
type Conventions struct {
	TradingDaysPerYear float64
	DaysPerYear        float64
	StdDev             StdDevKind
}

// DefaultConventions returns 252 trading days, 365.25 calendar days and
// sample standard deviation.
func DefaultConventions() Conventions {
	return Conventions{TradingDaysPerYear: 252, DaysPerYear: 365.25, StdDev: StdDevSample}
}

// Metrics are the portfolio statistics, all in percent except SharpeRatio.
type Metrics struct {
	CumulativeReturn float64
	AnnualizedReturn float64
	SharpeRatio      float64
	MaxDrawdown      float64
}

// BenchmarkMetrics are the statistics reported for the benchmark.
type BenchmarkMetrics struct {
	CumulativeReturn float64
	AnnualizedReturn float64
}

// ComputeMetrics derives all four statistics from vs. Every result is finite.
func ComputeMetrics(vs ValueSeries, c Conventions) (Metrics, error) {
	cum, ann, err := returns(vs, c)
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{
		CumulativeReturn: cum,
		AnnualizedReturn: ann,
		SharpeRatio:      SharpeRatio(vs, c),
		MaxDrawdown:      MaxDrawdown(vs),
	}, nil
}

// ComputeBenchmarkMetrics derives the cumulative and annualized return of vs.
func ComputeBenchmarkMetrics(vs ValueSeries, c Conventions) (BenchmarkMetrics, error) {
	cum, ann, err := returns(vs, c)
	if err != nil {
		return BenchmarkMetrics{}, err
	}
	return BenchmarkMetrics{CumulativeReturn: cum, AnnualizedReturn: ann}, nil
}

func returns(vs ValueSeries, c Conventions) (cumulative, annualized float64, err error) {
	if len(vs) < 2 {
		return 0, 0, &InsufficientDataError{Reason: "at least two values are required"}
	}
	first, last := vs[0], vs[len(vs)-1]
	if !validAnchor(first.Value) {
		return 0, 0, &InvalidPriceError{Symbol: "portfolio", Date: first.Date, Price: first.Value}
	}

	days := math.Round(last.Date.Sub(first.Date).Hours() / 24)
	if days <= 0 {
		return 0, 0, &InsufficientDataError{Reason: "the value series spans zero calendar days"}
	}

	ratio := last.Value / first.Value
	cumulative = (ratio - 1) * 100
	annualized = (math.Pow(ratio, c.DaysPerYear/days) - 1) * 100
	return finite(cumulative), finite(annualized), nil
}

// DailyReturns returns value[t]/value[t-1] - 1 for t >= 1, skipping days
// whose previous value is not positive.
func DailyReturns(vs ValueSeries) []float64 {
	if len(vs) < 2 {
		return nil
	}
	out := make([]float64, 0, len(vs)-1)
	for t := 1; t < len(vs); t++ {
		prev := vs[t-1].Value
		if prev <= 0 {
			continue
		}
		out = append(out, vs[t].Value/prev-1)
	}
	return out
}

// SharpeRatio is the annualized mean over standard deviation of daily
// returns with a zero risk-free rate. A flat or too short series yields 0,
// as does one whose returns differ only by floating-point noise.
func SharpeRatio(vs ValueSeries, c Conventions) float64 {
	r := DailyReturns(vs)
	mu := mean(r)
	sd := stdDev(r, c.StdDev)
	if math.IsNaN(sd) || sd <= zeroStdDev*math.Max(1, math.Abs(mu)) {
		return 0
	}
	return finite(mu / sd * math.Sqrt(c.TradingDaysPerYear))
}

// MaxDrawdown is the largest peak-to-trough decline in percent, in [0, 100].
func MaxDrawdown(vs ValueSeries) float64 {
	var peak, maxDD float64
	for _, p := range vs {
		if p.Value > peak {
			peak = p.Value
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - p.Value) / peak * 100; dd > maxDD {
			maxDD = dd
		}
	}
	return math.Min(math.Max(finite(maxDD), 0), 100)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdDev(xs []float64, kind StdDevKind) float64 {
	n := float64(len(xs))
	denom := n - 1
	if kind == StdDevPopulation {
		denom = n
	}
	if denom <= 0 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / denom)
}

// finite maps NaN and ±Inf to 0.
func finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
