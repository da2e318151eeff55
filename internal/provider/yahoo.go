package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"basket/internal/domain"
)

// Compile-time interface check.
var _ Provider = (*Yahoo)(nil)

// DefaultYahooBaseURL is the public Yahoo Finance query host.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// maxChartBytes caps a chart response; five years of daily bars is well
// under 1 MiB.
const maxChartBytes = 8 << 20

// yahooChartResp mirrors the Yahoo v8 chart response, trimmed to the daily
// fields we read. Closes are pointers because Yahoo emits null for days
// without a print.
type yahooChartResp struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GmtOffset int64  `json:"gmtoffset"`
				Timezone  string `json:"timezone"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Yahoo fetches split/dividend-adjusted daily closes from the Yahoo Finance
// chart API. It serves JP (".T" suffixed) codes, US tickers and "^" indices.
type Yahoo struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// NewYahoo creates a Yahoo provider. An empty baseURL selects
// DefaultYahooBaseURL; a nil client gets a 10s-timeout client.
func NewYahoo(baseURL string, client *http.Client, log *slog.Logger) *Yahoo {
	if baseURL == "" {
		baseURL = DefaultYahooBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Yahoo{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		log:     log.With("provider", "yahoo"),
	}
}

// DailySeries fetches closes for sym within [from, to].
func (y *Yahoo) DailySeries(ctx context.Context, sym domain.Symbol, from, to time.Time) (domain.PriceSeries, error) {
	q := url.Values{}
	q.Set("period1", fmt.Sprintf("%d", from.Unix()))
	q.Set("period2", fmt.Sprintf("%d", to.AddDate(0, 0, 1).Unix()))
	q.Set("interval", "1d")
	q.Set("events", "div,splits")
	addr := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.baseURL, url.PathEscape(sym.Code), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return domain.PriceSeries{}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; basket/1.0)")
	req.Header.Set("Accept", "application/json")

	resp, err := y.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return domain.PriceSeries{}, ctx.Err()
		}
		return domain.PriceSeries{}, fmt.Errorf("%s: %v: %w", sym.Code, err, ErrUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxChartBytes+1))
	if err != nil {
		return domain.PriceSeries{}, fmt.Errorf("%s: reading yahoo response: %v: %w", sym.Code, err, ErrUnavailable)
	}
	if len(body) > maxChartBytes {
		return domain.PriceSeries{}, fmt.Errorf("%s: yahoo response exceeds %d bytes: %w", sym.Code, maxChartBytes, ErrRejected)
	}

	if kind := classifyStatus(resp.StatusCode); kind != nil {
		y.log.Debug("yahoo request failed", "symbol", sym.Code, "status", resp.StatusCode, "body", preview(body))
		return domain.PriceSeries{}, fmt.Errorf("%s: yahoo returned %d: %w", sym.Code, resp.StatusCode, kind)
	}

	var yc yahooChartResp
	if err := json.Unmarshal(body, &yc); err != nil {
		return domain.PriceSeries{}, fmt.Errorf("%s: parsing yahoo json: %v; body: %s: %w", sym.Code, err, preview(body), ErrUnavailable)
	}
	if yc.Chart.Error != nil {
		return domain.PriceSeries{}, fmt.Errorf("%s: %s: %w", sym.Code, yc.Chart.Error.Description, ErrUnknownSymbol)
	}
	if len(yc.Chart.Result) == 0 {
		return domain.PriceSeries{}, fmt.Errorf("%s: %w", sym.Code, ErrUnknownSymbol)
	}

	series := parseChart(sym, yc)
	series = series.Between(domain.Day(from), domain.Day(to))
	if series.Len() == 0 {
		return domain.PriceSeries{}, fmt.Errorf("%s: %w", sym.Code, ErrEmptyRange)
	}
	return series, nil
}

// classifyStatus maps an HTTP status onto an error kind, nil for 200.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusNotFound:
		return ErrUnknownSymbol
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrRejected
	case status == http.StatusTooManyRequests, status >= 500:
		return ErrUnavailable
	default:
		return ErrEmptyRange
	}
}

// parseChart converts the first chart result into a validated series. Dates
// are the exchange-local calendar day of each bar; null closes are skipped
// and duplicate days keep the last print.
func parseChart(sym domain.Symbol, yc yahooChartResp) domain.PriceSeries {
	r := yc.Chart.Result[0]

	var closes []*float64
	if len(r.Indicators.AdjClose) > 0 && len(r.Indicators.AdjClose[0].AdjClose) == len(r.Timestamp) {
		closes = r.Indicators.AdjClose[0].AdjClose
	} else if len(r.Indicators.Quote) > 0 {
		closes = r.Indicators.Quote[0].Close
	}

	byDay := make(map[time.Time]float64, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		c := *closes[i]
		if math.IsNaN(c) || math.IsInf(c, 0) || c < 0 {
			continue
		}
		d := domain.Day(time.Unix(ts+r.Meta.GmtOffset, 0).UTC())
		byDay[d] = c
	}

	out := domain.PriceSeries{Symbol: sym, Points: make([]domain.PricePoint, 0, len(byDay))}
	for d, c := range byDay {
		out.Points = append(out.Points, domain.PricePoint{Date: d, Close: c})
	}
	sort.Slice(out.Points, func(i, j int) bool { return out.Points[i].Date.Before(out.Points[j].Date) })
	return out
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}
