package basket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient(t *testing.T) {
	c := NewClient("http://localhost:8463/")
	if c.baseURL != "http://localhost:8463" {
		t.Errorf("baseURL = %q", c.baseURL)
	}
	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
}

func TestRunBacktest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/backtest" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Portfolio []PortfolioItem `json:"portfolio"`
			Period    string          `json:"period"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		if len(body.Portfolio) != 1 || body.Portfolio[0].Stock.Code != "AAPL" || body.Period != "1y" {
			t.Errorf("body = %+v", body)
		}
		w.Write([]byte(`{"success":true,"data":{"dailyValues":[{"date":"2025-06-12","value":100,"benchmark":100},{"date":"2025-06-13","value":101.5,"benchmark":100.2}],"metrics":{"cumulativeReturn":1.5,"annualizedReturn":0,"sharpeRatio":0,"maxDrawdown":0},"benchmarkMetrics":{"cumulativeReturn":0.2,"annualizedReturn":0},"benchmarkSymbol":"^GSPC","portfolio":[],"period":"1y"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL).WithHTTPClient(srv.Client())
	res, err := c.RunBacktest(context.Background(), []PortfolioItem{{Stock: Stock{Code: "AAPL", Name: "Apple Inc.", Market: "US"}, Weight: 100}}, "1y")
	if err != nil {
		t.Fatalf("RunBacktest returned error: %v", err)
	}
	if len(res.DailyValues) != 2 || res.Metrics.CumulativeReturn != 1.5 || res.BenchmarkSymbol != "^GSPC" {
		t.Errorf("result = %+v", res)
	}
}

func TestRunBacktestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"error":"投資比率の合計を100%にしてください"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).RunBacktest(context.Background(), nil, "1y")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "投資比率の合計を100%にしてください" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestSearchStocksAndHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/stocks/search":
			if r.URL.Query().Get("q") != "トヨタ" {
				t.Errorf("q = %q", r.URL.Query().Get("q"))
			}
			w.Write([]byte(`{"success":true,"data":{"stocks":[{"code":"7203.T","name":"トヨタ自動車","market":"JP"}]}}`))
		case "/api/health":
			w.Write([]byte(`{"status":"healthy"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	stocks, err := c.SearchStocks(context.Background(), "トヨタ")
	if err != nil {
		t.Fatalf("SearchStocks: %v", err)
	}
	if len(stocks) != 1 || stocks[0].Code != "7203.T" {
		t.Errorf("stocks = %+v", stocks)
	}

	status, err := c.Health(context.Background())
	if err != nil || status != "healthy" {
		t.Errorf("Health = %q, %v", status, err)
	}
}
