package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"basket/internal/backtest"
	"basket/internal/domain"
	"basket/internal/httpapi"
	"basket/internal/provider"
	"basket/internal/store"
	"basket/internal/util"
	"basket/pkg/basket"
)

var runCmd = &cobra.Command{
	Use:   "run CODE:MARKET=WEIGHT...",
	Short: "Run a portfolio backtest",
	Long: `Run backtests a weighted portfolio over the chosen lookback period and
prints the portfolio and benchmark metrics. Weights are percentages and
must add up to 100.

Example:
  basket-cli run 7203.T:JP=50 AAPL:US=50 --period 3y
  basket-cli run AAPL:US=100 --local --daily`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBacktest,
}

var (
	runPeriod string
	runLocal  bool
	runDaily  bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runPeriod, "period", "p", "1y", "lookback period (1y, 3y, 5y)")
	runCmd.Flags().BoolVar(&runLocal, "local", false, "run in-process instead of calling basket-server")
	runCmd.Flags().BoolVar(&runDaily, "daily", false, "also print the daily value table")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	items, err := parseItems(args)
	if err != nil {
		return err
	}

	var res *basket.BacktestResult
	if runLocal {
		res, err = runLocalBacktest(cmd, items)
	} else {
		res, err = newClient().RunBacktest(cmd.Context(), items, runPeriod)
	}
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	printResult(cmd.OutOrStdout(), res, runDaily)
	return nil
}

func runLocalBacktest(cmd *cobra.Command, items []basket.PortfolioItem) (*basket.BacktestResult, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := util.NewLoggerTo(cmd.ErrOrStderr(), cfg.Logging.Level, "text")

	prices, err := provider.Build(cfg, store.NewParquetStore(cfg.Storage.DataDir), nil, logger)
	if err != nil {
		return nil, fmt.Errorf("build provider: %w", err)
	}
	opts, err := backtest.OptionsFromConfig(cfg.Backtest)
	if err != nil {
		return nil, fmt.Errorf("backtest config: %w", err)
	}

	period, err := domain.ParsePeriod(runPeriod)
	if err != nil {
		return nil, err
	}
	req := backtest.Request{Period: period}
	for _, it := range items {
		req.Portfolio = append(req.Portfolio, domain.PortfolioItem{
			Stock:  domain.Stock{Code: it.Stock.Code, Name: it.Stock.Name, Market: domain.Market(it.Stock.Market)},
			Weight: it.Weight,
		})
	}

	r, err := backtest.NewEngine(prices, opts, logger).Run(cmd.Context(), req)
	if err != nil {
		var ve *backtest.ValidationError
		if errors.As(err, &ve) {
			return nil, errors.New(ve.Reason)
		}
		return nil, err
	}
	return fromWire(httpapi.NewBacktestResult(r)), nil
}

// parseItems reads CODE:MARKET=WEIGHT arguments. The market may be omitted
// for codes ending in ".T", which are always JP.
func parseItems(args []string) ([]basket.PortfolioItem, error) {
	items := make([]basket.PortfolioItem, 0, len(args))
	for _, a := range args {
		sym, w, ok := strings.Cut(a, "=")
		if !ok {
			return nil, fmt.Errorf("invalid item %q: want CODE:MARKET=WEIGHT", a)
		}
		weight, err := strconv.ParseFloat(w, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight in %q: %w", a, err)
		}

		code, market := sym, ""
		if i := strings.LastIndex(sym, ":"); i >= 0 {
			code, market = sym[:i], sym[i+1:]
		} else if strings.HasSuffix(strings.ToUpper(sym), ".T") {
			market = string(domain.MarketJP)
		}
		m, err := domain.ParseMarket(market)
		if err != nil {
			return nil, fmt.Errorf("invalid market in %q: %w", a, err)
		}
		if code == "" {
			return nil, fmt.Errorf("invalid item %q: empty code", a)
		}

		items = append(items, basket.PortfolioItem{
			Stock:  basket.Stock{Code: code, Name: code, Market: string(m)},
			Weight: weight,
		})
	}
	return items, nil
}

func fromWire(r httpapi.BacktestResult) *basket.BacktestResult {
	out := &basket.BacktestResult{
		DailyValues:      make([]basket.DailyValue, len(r.DailyValues)),
		Metrics:          basket.Metrics(r.Metrics),
		BenchmarkMetrics: basket.BenchmarkMetrics(r.BenchmarkMetrics),
		BenchmarkSymbol:  r.BenchmarkSymbol,
		Period:           r.Period,
	}
	for i, dv := range r.DailyValues {
		out.DailyValues[i] = basket.DailyValue(dv)
	}
	for _, it := range r.Portfolio {
		out.Portfolio = append(out.Portfolio, basket.PortfolioItem{
			Stock:  basket.Stock{Code: it.Stock.Code, Name: it.Stock.Name, Market: string(it.Stock.Market)},
			Weight: it.Weight,
		})
	}
	return out
}

func printResult(w io.Writer, r *basket.BacktestResult, daily bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintf(tw, "period\t%s\t\n", r.Period)
	if n := len(r.DailyValues); n > 0 {
		fmt.Fprintf(tw, "range\t%s .. %s\t\n", r.DailyValues[0].Date, r.DailyValues[n-1].Date)
	}
	fmt.Fprintln(tw, "\t\t")
	fmt.Fprintf(tw, "\tportfolio\t%s\t\n", r.BenchmarkSymbol)
	fmt.Fprintf(tw, "cumulative %%\t%.2f\t%.2f\t\n", r.Metrics.CumulativeReturn, r.BenchmarkMetrics.CumulativeReturn)
	fmt.Fprintf(tw, "annualized %%\t%.2f\t%.2f\t\n", r.Metrics.AnnualizedReturn, r.BenchmarkMetrics.AnnualizedReturn)
	fmt.Fprintf(tw, "sharpe\t%.2f\t\t\n", r.Metrics.SharpeRatio)
	fmt.Fprintf(tw, "max drawdown %%\t%.2f\t\t\n", r.Metrics.MaxDrawdown)

	if daily {
		fmt.Fprintln(tw, "\t\t")
		fmt.Fprintln(tw, "date\tvalue\tbenchmark\t")
		for _, dv := range r.DailyValues {
			fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t\n", dv.Date, dv.Value, dv.Benchmark)
		}
	}
	tw.Flush()
}
