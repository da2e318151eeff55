package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"basket/internal/domain"
	"basket/internal/util"
)

// chartJSON builds a minimal v8 chart payload. A NaN close is emitted as null.
func chartJSON(gmtoffset int64, ts []int64, closes []string) string {
	var tsParts []string
	for _, t := range ts {
		tsParts = append(tsParts, fmt.Sprintf("%d", t))
	}
	return fmt.Sprintf(`{"chart":{"result":[{"meta":{"symbol":"X","gmtoffset":%d,"timezone":"JST"},`+
		`"timestamp":[%s],"indicators":{"quote":[{"close":[%s]}]}}],"error":null}}`,
		gmtoffset, strings.Join(tsParts, ","), strings.Join(closes, ","))
}

func TestYahooDailySeries(t *testing.T) {
	// 09:00 JST opens, expressed as UTC seconds (00:00 UTC).
	d1 := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC).Unix()
	d2 := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC).Unix()
	d3 := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC).Unix()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.URL.Query().Get("interval") != "1d" {
			t.Errorf("interval = %q, want 1d", r.URL.Query().Get("interval"))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chartJSON(9*3600, []int64{d1, d2, d3}, []string{"2500.5", "null", "2510"}))
	}))
	defer srv.Close()

	y := NewYahoo(srv.URL, srv.Client(), util.Discard())
	sym := domain.Symbol{Code: "7203.T", Market: domain.MarketJP}
	got, err := y.DailySeries(context.Background(), sym,
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("DailySeries returned error: %v", err)
	}
	if gotPath != "/v8/finance/chart/7203.T" {
		t.Errorf("path = %q", gotPath)
	}
	if got.Len() != 2 {
		t.Fatalf("got %d points, want 2 (null close skipped)", got.Len())
	}
	if !got.Points[0].Date.Equal(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)) || got.Points[0].Close != 2500.5 {
		t.Errorf("first point = %+v", got.Points[0])
	}
	if got.Points[1].Close != 2510 {
		t.Errorf("second point = %+v", got.Points[1])
	}
	if err := got.Validate(); err != nil {
		t.Errorf("series does not validate: %v", err)
	}
}

func TestYahooPrefersAdjustedClose(t *testing.T) {
	d1 := time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"chart":{"result":[{"meta":{"gmtoffset":-18000},"timestamp":[%d],`+
			`"indicators":{"quote":[{"close":[200]}],"adjclose":[{"adjclose":[190]}]}}],"error":null}}`, d1)
	}))
	defer srv.Close()

	y := NewYahoo(srv.URL, srv.Client(), util.Discard())
	got, err := y.DailySeries(context.Background(), domain.Symbol{Code: "AAPL", Market: domain.MarketUS},
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("DailySeries returned error: %v", err)
	}
	if got.Len() != 1 || got.Points[0].Close != 190 {
		t.Errorf("points = %+v, want adjusted close 190", got.Points)
	}
}

func TestYahooErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"not found", http.StatusNotFound, `{}`, ErrUnknownSymbol},
		{"unauthorized", http.StatusUnauthorized, `Invalid Crumb`, ErrRejected},
		{"forbidden", http.StatusForbidden, `Forbidden`, ErrRejected},
		{"rate limited", http.StatusTooManyRequests, `Too Many Requests`, ErrUnavailable},
		{"server error", http.StatusBadGateway, `bad gateway`, ErrUnavailable},
		{"chart error", http.StatusOK, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`, ErrUnknownSymbol},
		{"empty result", http.StatusOK, `{"chart":{"result":[],"error":null}}`, ErrUnknownSymbol},
		{"no points in range", http.StatusOK, chartJSON(0, nil, nil), ErrEmptyRange},
		{"garbled json", http.StatusOK, `<html>`, ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			y := NewYahoo(srv.URL, srv.Client(), util.Discard())
			_, err := y.DailySeries(context.Background(), domain.Symbol{Code: "ZZZZ", Market: domain.MarketUS},
				time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if IsTransient(err) != (tt.want == ErrUnavailable) {
				t.Errorf("IsTransient(%v) = %v", err, IsTransient(err))
			}
		})
	}
}

func TestYahooOversizedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, maxChartBytes+10))
	}))
	defer srv.Close()

	y := NewYahoo(srv.URL, srv.Client(), util.Discard())
	_, err := y.DailySeries(context.Background(), domain.Symbol{Code: "AAPL", Market: domain.MarketUS},
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrRejected) {
		t.Errorf("error = %v, want ErrRejected", err)
	}
}

func TestYahooCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	y := NewYahoo(srv.URL, srv.Client(), util.Discard())
	_, err := y.DailySeries(ctx, domain.Symbol{Code: "AAPL", Market: domain.MarketUS}, time.Now().AddDate(0, -1, 0), time.Now())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
