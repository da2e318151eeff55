package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"basket/internal/domain"
	"basket/internal/util"
)

// Compile-time interface check.
var _ Provider = (*Alpaca)(nil)

// barsFetcher is the slice of the Alpaca market-data client we use.
type barsFetcher interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// Alpaca fetches split- and dividend-adjusted daily bars for US equities
// from the Alpaca market-data API. It does not serve indices or JP codes.
type Alpaca struct {
	client barsFetcher
	feed   marketdata.Feed
	cal    *util.TradingCalendar
	log    *slog.Logger
}

// NewAlpaca creates an Alpaca provider with the given credentials. An empty
// dataURL keeps the SDK default; feed is "iex" or "sip".
func NewAlpaca(apiKey, apiSecret, dataURL, feed string, log *slog.Logger) *Alpaca {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return newAlpaca(marketdata.NewClient(opts), feed, log)
}

func newAlpaca(client barsFetcher, feed string, log *slog.Logger) *Alpaca {
	if feed == "" {
		feed = "iex"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Alpaca{
		client: client,
		feed:   marketdata.Feed(feed),
		cal:    util.NewTradingCalendar(domain.MarketUS),
		log:    log.With("provider", "alpaca"),
	}
}

type barsResult struct {
	bars []marketdata.Bar
	err  error
}

// DailySeries fetches daily closes for sym within [from, to]. The SDK call
// is not context-aware, so cancellation abandons it rather than aborting it.
func (a *Alpaca) DailySeries(ctx context.Context, sym domain.Symbol, from, to time.Time) (domain.PriceSeries, error) {
	if sym.IsIndex() || sym.Market != domain.MarketUS {
		return domain.PriceSeries{}, fmt.Errorf("%s: alpaca serves US equities only: %w", sym.Code, ErrUnknownSymbol)
	}

	ch := make(chan barsResult, 1)
	go func() {
		bars, err := a.client.GetBars(strings.ToUpper(sym.Code), marketdata.GetBarsRequest{
			TimeFrame:  marketdata.OneDay,
			Adjustment: marketdata.All,
			Start:      from,
			End:        to.AddDate(0, 0, 1),
			Feed:       a.feed,
		})
		ch <- barsResult{bars: bars, err: err}
	}()

	var res barsResult
	select {
	case <-ctx.Done():
		return domain.PriceSeries{}, ctx.Err()
	case res = <-ch:
	}

	if res.err != nil {
		if strings.Contains(strings.ToLower(res.err.Error()), "invalid symbol") {
			return domain.PriceSeries{}, fmt.Errorf("%s: %v: %w", sym.Code, res.err, ErrUnknownSymbol)
		}
		a.log.Debug("GetBars failed", "symbol", sym.Code, "error", res.err)
		return domain.PriceSeries{}, fmt.Errorf("%s: GetBars: %v: %w", sym.Code, res.err, ErrUnavailable)
	}

	series := domain.PriceSeries{Symbol: sym}
	for _, b := range res.bars {
		d := domain.Day(b.Timestamp.In(a.cal.Location()))
		if n := len(series.Points); n > 0 && !d.After(series.Points[n-1].Date) {
			continue
		}
		series.Points = append(series.Points, domain.PricePoint{Date: d, Close: b.Close})
	}
	series = series.Between(domain.Day(from), domain.Day(to))
	if series.Len() == 0 {
		return domain.PriceSeries{}, fmt.Errorf("%s: %w", sym.Code, ErrEmptyRange)
	}
	return series, nil
}
