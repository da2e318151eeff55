package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"basket/internal/config"
	"basket/internal/domain"
	"basket/internal/provider"
	"basket/internal/util"
)

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Options configures an Engine.
type Options struct {
	InitialCapital  float64
	Conventions     Conventions
	Calendar        CalendarPolicy
	Rebalance       Rebalance
	MaxSymbols      int
	WeightTolerance float64
	Timeout         time.Duration
	FetchRetries    int
	RetryBaseDelay  time.Duration
	Benchmarks      map[domain.Market]string
}

// DefaultOptions mirrors config.Default().Backtest.
func DefaultOptions() Options {
	return Options{
		InitialCapital:  100,
		Conventions:     DefaultConventions(),
		Calendar:        CalendarIntersection,
		Rebalance:       RebalanceNone,
		MaxSymbols:      10,
		WeightTolerance: 0.01,
		Timeout:         30 * time.Second,
		FetchRetries:    2,
		RetryBaseDelay:  200 * time.Millisecond,
		Benchmarks:      map[domain.Market]string{domain.MarketJP: "^N225", domain.MarketUS: "^GSPC"},
	}
}

// OptionsFromConfig validates the backtest section of the configuration.
func OptionsFromConfig(cfg config.Backtest) (Options, error) {
	opts := DefaultOptions()

	var err error
	if opts.Conventions.StdDev, err = ParseStdDevKind(cfg.StdDev); err != nil {
		return Options{}, err
	}
	if opts.Calendar, err = ParseCalendarPolicy(cfg.Calendar); err != nil {
		return Options{}, err
	}
	if opts.Rebalance, err = ParseRebalance(cfg.Rebalance); err != nil {
		return Options{}, err
	}
	if cfg.InitialCapital > 0 {
		opts.InitialCapital = cfg.InitialCapital
	}
	if cfg.TradingDaysPerYear > 0 {
		opts.Conventions.TradingDaysPerYear = cfg.TradingDaysPerYear
	}
	if cfg.DaysPerYear > 0 {
		opts.Conventions.DaysPerYear = cfg.DaysPerYear
	}
	if cfg.MaxSymbols > 0 {
		opts.MaxSymbols = cfg.MaxSymbols
	}
	if cfg.WeightTolerance > 0 {
		opts.WeightTolerance = cfg.WeightTolerance
	}
	if cfg.Timeout < 0 {
		return Options{}, fmt.Errorf("timeout must not be negative: %s", cfg.Timeout)
	}
	if cfg.Timeout > 0 {
		opts.Timeout = cfg.Timeout
	}
	if cfg.FetchRetries >= 0 {
		opts.FetchRetries = cfg.FetchRetries
	}
	if cfg.RetryBaseDelay > 0 {
		opts.RetryBaseDelay = cfg.RetryBaseDelay
	}
	for k, code := range cfg.Benchmarks {
		m, err := domain.ParseMarket(k)
		if err != nil {
			return Options{}, fmt.Errorf("benchmarks: %w", err)
		}
		if code = strings.TrimSpace(code); code != "" {
			opts.Benchmarks[m] = code
		}
	}
	return opts, nil
}

// ---------------------------------------------------------------------------
// Request / Result
// ---------------------------------------------------------------------------

// Request is one backtest invocation.
type Request struct {
	Portfolio []domain.PortfolioItem
	Period    domain.Period
}

// DailyValue pairs the portfolio and benchmark value on one date.
type DailyValue struct {
	Date      time.Time
	Value     float64
	Benchmark float64
}

// Result is the outcome of a successful run. It is never partially filled.
type Result struct {
	DailyValues      []DailyValue
	Metrics          Metrics
	BenchmarkMetrics BenchmarkMetrics
	BenchmarkSymbol  string
	Portfolio        []domain.PortfolioItem
	Period           domain.Period
	Start            time.Time
	End              time.Time
}

// ---------------------------------------------------------------------------
// Engine
// ---------------------------------------------------------------------------

// Engine runs backtests against a price provider. It holds no per-run state
// and is safe for concurrent use.
type Engine struct {
	prices provider.Provider
	opts   Options
	now    func() time.Time
	log    *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(prices provider.Provider, opts Options, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		prices: prices,
		opts:   opts,
		now:    time.Now,
		log:    log.With("component", "backtest"),
	}
}

// SetClock replaces the time source used to resolve periods.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Run validates req, fetches every symbol plus the benchmark in parallel,
// aligns them, values the portfolio and benchmark, and computes metrics.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	if err := e.validate(req); err != nil {
		return nil, err
	}

	symbols := make([]domain.Symbol, len(req.Portfolio))
	weights := make([]float64, len(req.Portfolio))
	for i, item := range req.Portfolio {
		symbols[i] = domain.Symbol{Code: strings.TrimSpace(item.Stock.Code), Market: item.Stock.Market}
		weights[i] = item.Weight
	}
	bench := e.Benchmark(symbols)
	from, to := req.Period.Range(e.now())

	runCtx := ctx
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	fetched, err := e.fetchAll(runCtx, append(append([]domain.Symbol{}, symbols...), bench), from, to)
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.Canceled):
			return nil, fmt.Errorf("backtest cancelled: %w", ctx.Err())
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			timeout := e.opts.Timeout
			if timeout <= 0 || ctx.Err() != nil {
				timeout = time.Since(start).Round(time.Millisecond)
			}
			return nil, &TimeoutError{Timeout: timeout}
		}
		return nil, err
	}

	series := make([]domain.PriceSeries, len(symbols))
	for i, s := range symbols {
		series[i] = fetched[s.Code]
	}

	m, err := Align(series, fetched[bench.Code], Window{From: from, To: to}, e.opts.Calendar)
	if err != nil {
		return nil, err
	}
	pv, err := Valuate(m, weights, e.opts.InitialCapital, e.opts.Rebalance)
	if err != nil {
		return nil, err
	}
	bv, err := ValuateBenchmark(m, e.opts.InitialCapital)
	if err != nil {
		return nil, err
	}
	pm, err := ComputeMetrics(pv, e.opts.Conventions)
	if err != nil {
		return nil, err
	}
	bm, err := ComputeBenchmarkMetrics(bv, e.opts.Conventions)
	if err != nil {
		return nil, err
	}

	res := &Result{
		DailyValues:      make([]DailyValue, m.Rows()),
		Metrics:          pm,
		BenchmarkMetrics: bm,
		BenchmarkSymbol:  bench.Code,
		Portfolio:        append([]domain.PortfolioItem(nil), req.Portfolio...),
		Period:           req.Period,
		Start:            m.Dates[0],
		End:              m.Dates[m.Rows()-1],
	}
	for i := range m.Dates {
		res.DailyValues[i] = DailyValue{Date: m.Dates[i], Value: pv[i].Value, Benchmark: bv[i].Value}
	}

	e.log.Info("backtest complete",
		"symbols", symbolCodes(symbols),
		"period", string(req.Period),
		"benchmark", bench.Code,
		"days", m.Rows(),
		"cumulative_return", pm.CumulativeReturn,
		"elapsed", time.Since(start),
	)
	return res, nil
}

// Benchmark picks the reference index: the JP index when JP symbols are at
// least as many as US symbols, otherwise the US index.
func (e *Engine) Benchmark(symbols []domain.Symbol) domain.Symbol {
	var jp, us int
	for _, s := range symbols {
		switch s.Market {
		case domain.MarketJP:
			jp++
		case domain.MarketUS:
			us++
		}
	}
	market := domain.MarketUS
	if jp >= us {
		market = domain.MarketJP
	}
	code := e.opts.Benchmarks[market]
	if code == "" {
		code = DefaultOptions().Benchmarks[market]
	}
	return domain.Symbol{Code: code, Market: market}
}

// validate rejects malformed requests before any fetch.
func (e *Engine) validate(req Request) error {
	n := len(req.Portfolio)
	if n == 0 {
		return &ValidationError{Reason: "ポートフォリオに銘柄を追加してください"}
	}
	if e.opts.MaxSymbols > 0 && n > e.opts.MaxSymbols {
		return &ValidationError{Reason: fmt.Sprintf("銘柄は最大%d件までです", e.opts.MaxSymbols)}
	}

	seen := make(map[string]struct{}, n)
	var sum float64
	for _, item := range req.Portfolio {
		code := strings.TrimSpace(item.Stock.Code)
		if code == "" {
			return &ValidationError{Reason: "銘柄コードが空です"}
		}
		if item.Stock.Market != domain.MarketJP && item.Stock.Market != domain.MarketUS {
			return &ValidationError{Reason: fmt.Sprintf("市場はJPまたはUSを指定してください: %s", code)}
		}
		key := strings.ToUpper(code)
		if _, dup := seen[key]; dup {
			return &ValidationError{Reason: fmt.Sprintf("銘柄が重複しています: %s", code)}
		}
		seen[key] = struct{}{}
		if math.IsNaN(item.Weight) || item.Weight < 0 || item.Weight > 100 {
			return &ValidationError{Reason: fmt.Sprintf("投資比率は0〜100%%の範囲で指定してください: %s", code)}
		}
		sum += item.Weight
	}
	if math.Abs(sum-100) > e.opts.WeightTolerance {
		return &ValidationError{Reason: "投資比率の合計を100%にしてください"}
	}
	if _, err := domain.ParsePeriod(string(req.Period)); err != nil {
		return &ValidationError{Reason: "期間は1y, 3y, 5yのいずれかを指定してください"}
	}
	return nil
}

// fetchAll retrieves every distinct symbol concurrently. The first failure
// cancels the remaining fetches.
func (e *Engine) fetchAll(ctx context.Context, symbols []domain.Symbol, from, to time.Time) (map[string]domain.PriceSeries, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]domain.PriceSeries, len(symbols))
	)
	g, gctx := errgroup.WithContext(ctx)
	requested := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		if _, ok := requested[sym.Code]; ok {
			continue
		}
		requested[sym.Code] = struct{}{}

		g.Go(func() error {
			s, err := e.fetchOne(gctx, sym, from, to)
			if err != nil {
				return err
			}
			mu.Lock()
			out[sym.Code] = s
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// fetchOne retries transient provider failures and maps the rest onto the
// backtest error types.
func (e *Engine) fetchOne(ctx context.Context, sym domain.Symbol, from, to time.Time) (domain.PriceSeries, error) {
	var s domain.PriceSeries
	err := util.RetryIf(ctx, 1+e.opts.FetchRetries, e.opts.RetryBaseDelay, provider.IsTransient, func() error {
		var err error
		s, err = e.prices.DailySeries(ctx, sym, from, to)
		if err != nil && provider.IsTransient(err) {
			e.log.Debug("transient price fetch failure", "symbol", sym.Code, "error", err)
		}
		return err
	})

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.PriceSeries{}, err
	case errors.Is(err, provider.ErrUnknownSymbol):
		return domain.PriceSeries{}, &ValidationError{Reason: fmt.Sprintf("銘柄が見つかりません: %s", sym.Code)}
	case errors.Is(err, provider.ErrEmptyRange):
		return domain.PriceSeries{}, &InsufficientDataError{Symbol: sym.Code, Reason: "no prices in the requested period"}
	default:
		e.log.Warn("price fetch failed", "symbol", sym.Code, "error", err)
		return domain.PriceSeries{}, &DataSourceError{Symbol: sym.Code, Err: err}
	}

	if err := s.Validate(); err != nil {
		return domain.PriceSeries{}, &DataSourceError{Symbol: sym.Code, Err: err}
	}
	return s, nil
}

func symbolCodes(syms []domain.Symbol) []string {
	out := make([]string, len(syms))
	for i, s := range syms {
		out[i] = s.Code
	}
	return out
}
