package httpapi

import (
	"github.com/shopspring/decimal"

	"basket/internal/backtest"
	"basket/internal/domain"
)

// Envelope is the response wrapper shared by every /api endpoint except
// health: {success, data} on success, {success:false, error} otherwise.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// BacktestRequest is the body of POST /api/backtest.
type BacktestRequest struct {
	Portfolio []domain.PortfolioItem `json:"portfolio"`
	Period    string                 `json:"period"`
}

// DailyValue is one chart point.
type DailyValue struct {
	Date      string  `json:"date"`
	Value     float64 `json:"value"`
	Benchmark float64 `json:"benchmark"`
}

// Metrics mirrors backtest.Metrics in percent units.
type Metrics struct {
	CumulativeReturn float64 `json:"cumulativeReturn"`
	AnnualizedReturn float64 `json:"annualizedReturn"`
	SharpeRatio      float64 `json:"sharpeRatio"`
	MaxDrawdown      float64 `json:"maxDrawdown"`
}

// BenchmarkMetrics mirrors backtest.BenchmarkMetrics.
type BenchmarkMetrics struct {
	CumulativeReturn float64 `json:"cumulativeReturn"`
	AnnualizedReturn float64 `json:"annualizedReturn"`
}

// BacktestResult is the data payload of a successful backtest.
type BacktestResult struct {
	DailyValues      []DailyValue           `json:"dailyValues"`
	Metrics          Metrics                `json:"metrics"`
	BenchmarkMetrics BenchmarkMetrics       `json:"benchmarkMetrics"`
	BenchmarkSymbol  string                 `json:"benchmarkSymbol"`
	Portfolio        []domain.PortfolioItem `json:"portfolio"`
	Period           string                 `json:"period"`
}

// SearchResult is the data payload of GET /api/stocks/search.
type SearchResult struct {
	Stocks []domain.Stock `json:"stocks"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status string `json:"status"`
}

// NewBacktestResult converts an engine result to its wire form, rounding
// values and metrics to two decimals.
func NewBacktestResult(r *backtest.Result) BacktestResult {
	out := BacktestResult{
		DailyValues: make([]DailyValue, len(r.DailyValues)),
		Metrics: Metrics{
			CumulativeReturn: round2(r.Metrics.CumulativeReturn),
			AnnualizedReturn: round2(r.Metrics.AnnualizedReturn),
			SharpeRatio:      round2(r.Metrics.SharpeRatio),
			MaxDrawdown:      round2(r.Metrics.MaxDrawdown),
		},
		BenchmarkMetrics: BenchmarkMetrics{
			CumulativeReturn: round2(r.BenchmarkMetrics.CumulativeReturn),
			AnnualizedReturn: round2(r.BenchmarkMetrics.AnnualizedReturn),
		},
		BenchmarkSymbol: r.BenchmarkSymbol,
		Portfolio:       r.Portfolio,
		Period:          string(r.Period),
	}
	for i, dv := range r.DailyValues {
		out.DailyValues[i] = DailyValue{
			Date:      dv.Date.Format(domain.DateFormat),
			Value:     round2(dv.Value),
			Benchmark: round2(dv.Benchmark),
		}
	}
	return out
}

// round2 rounds half away from zero in decimal, so 1.005 becomes 1.01.
func round2(x float64) float64 {
	return decimal.NewFromFloat(x).Round(2).InexactFloat64()
}
