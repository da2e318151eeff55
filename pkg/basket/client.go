// Package basket is a Go client for the basket backtest API.
package basket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Stock identifies a security. Market is "JP" or "US".
type Stock struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Market string `json:"market"`
}

// PortfolioItem is one weighted constituent; Weight is a percentage.
type PortfolioItem struct {
	Stock  Stock   `json:"stock"`
	Weight float64 `json:"weight"`
}

// DailyValue is one point of the value curves.
type DailyValue struct {
	Date      string  `json:"date"`
	Value     float64 `json:"value"`
	Benchmark float64 `json:"benchmark"`
}

// Metrics are the portfolio statistics in percent units.
type Metrics struct {
	CumulativeReturn float64 `json:"cumulativeReturn"`
	AnnualizedReturn float64 `json:"annualizedReturn"`
	SharpeRatio      float64 `json:"sharpeRatio"`
	MaxDrawdown      float64 `json:"maxDrawdown"`
}

// BenchmarkMetrics are the benchmark statistics in percent units.
type BenchmarkMetrics struct {
	CumulativeReturn float64 `json:"cumulativeReturn"`
	AnnualizedReturn float64 `json:"annualizedReturn"`
}

// BacktestResult is returned by RunBacktest.
type BacktestResult struct {
	DailyValues      []DailyValue     `json:"dailyValues"`
	Metrics          Metrics          `json:"metrics"`
	BenchmarkMetrics BenchmarkMetrics `json:"benchmarkMetrics"`
	BenchmarkSymbol  string           `json:"benchmarkSymbol"`
	Portfolio        []PortfolioItem  `json:"portfolio"`
	Period           string           `json:"period"`
}

// APIError is returned for any non-success response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("basket api: %d: %s", e.StatusCode, e.Message)
}

// Client provides a Go SDK for interacting with the basket-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new basket API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// RunBacktest posts a portfolio and period ("1y", "3y" or "5y").
func (c *Client) RunBacktest(ctx context.Context, portfolio []PortfolioItem, period string) (*BacktestResult, error) {
	body, err := json.Marshal(map[string]any{"portfolio": portfolio, "period": period})
	if err != nil {
		return nil, err
	}
	var res BacktestResult
	if err := c.do(ctx, http.MethodPost, "/api/backtest", bytes.NewReader(body), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SearchStocks queries the stock catalogue.
func (c *Client) SearchStocks(ctx context.Context, q string) ([]Stock, error) {
	var res struct {
		Stocks []Stock `json:"stocks"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/stocks/search?q="+url.QueryEscape(q), nil, &res); err != nil {
		return nil, err
	}
	return res.Stocks, nil
}

// Health returns the server status string, "healthy" when up.
func (c *Client) Health(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var h struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return "", fmt.Errorf("decoding health: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return h.Status, &APIError{StatusCode: resp.StatusCode, Message: h.Status}
	}
	return h.Status, nil
}

// do sends a request and unwraps the {success, data, error} envelope into out.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if !env.Success || resp.StatusCode != http.StatusOK {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
