package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"basket/internal/provider"
)

// Telemetry holds the Prometheus collectors of the service on a private
// registry.
type Telemetry struct {
	registry *prometheus.Registry

	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	Backtests        *prometheus.CounterVec
	BacktestDuration prometheus.Histogram
	ProviderRequests *prometheus.CounterVec
}

// NewTelemetry creates and registers all collectors.
func NewTelemetry() *Telemetry {
	m := &Telemetry{
		registry: prometheus.NewRegistry(),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "basket_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "basket_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		Backtests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "basket_backtests_total",
				Help: "Backtest runs by outcome",
			},
			[]string{"outcome"},
		),
		BacktestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "basket_backtest_duration_seconds",
				Help:    "Wall time of backtest runs, including price fetches",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "basket_price_provider_requests_total",
				Help: "Upstream price requests by source and outcome",
			},
			[]string{"source", "outcome"},
		),
	}
	m.registry.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.Backtests,
		m.BacktestDuration,
		m.ProviderRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveProvider records one upstream price request. Its signature matches
// provider.GuardOptions.OnResult.
func (m *Telemetry) ObserveProvider(source string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, provider.ErrUnknownSymbol):
		outcome = "unknown_symbol"
	case errors.Is(err, provider.ErrEmptyRange):
		outcome = "empty_range"
	case errors.Is(err, provider.ErrRejected):
		outcome = "rejected"
	case provider.IsTransient(err):
		outcome = "unavailable"
	default:
		outcome = "error"
	}
	m.ProviderRequests.WithLabelValues(source, outcome).Inc()
}

func (m *Telemetry) observeHTTP(route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Telemetry) observeBacktest(outcome string, elapsed time.Duration) {
	m.Backtests.WithLabelValues(outcome).Inc()
	m.BacktestDuration.Observe(elapsed.Seconds())
}
