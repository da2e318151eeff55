// Package httpapi serves the JSON API consumed by the portfolio front end:
// stock search, backtests and health, plus Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"

	"basket/internal/backtest"
	"basket/internal/domain"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

// Backtester runs a backtest. *backtest.Engine satisfies it.
type Backtester interface {
	Run(ctx context.Context, req backtest.Request) (*backtest.Result, error)
}

// StockSearcher looks up catalogue entries. *catalog.Catalog satisfies it.
type StockSearcher interface {
	Search(ctx context.Context, q string) ([]domain.Stock, error)
}

// Server serves the basket HTTP API.
type Server struct {
	engine  Backtester
	stocks  StockSearcher
	metrics *Telemetry
	origins []string
	log     *slog.Logger
}

// NewServer creates a Server. metrics may be nil, in which case a private
// set of collectors is created.
func NewServer(engine Backtester, stocks StockSearcher, metrics *Telemetry, origins []string, log *slog.Logger) *Server {
	if metrics == nil {
		metrics = NewTelemetry()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		engine:  engine,
		stocks:  stocks,
		metrics: metrics,
		origins: origins,
		log:     log.With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/stocks/search", s.handleSearch)
	mux.HandleFunc("POST /api/backtest", s.handleBacktest)
	mux.Handle("GET /metrics", s.metrics.Handler())
}

// Handler returns the routes wrapped in request-ID, access-log and CORS
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.requestIDMiddleware(s.loggingMiddleware(s.corsMiddleware(mux)))
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	stocks, err := s.stocks.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		requestLogger(r.Context(), s.log).Error("stock search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "銘柄検索に失敗しました")
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: SearchResult{Stocks: stocks}})
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r.Context(), s.log)
	start := time.Now()

	var req BacktestRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		log.Debug("malformed backtest request", "error", err)
		s.metrics.observeBacktest("malformed", time.Since(start))
		writeError(w, http.StatusBadRequest, "リクエストの形式が正しくありません")
		return
	}

	res, err := s.engine.Run(r.Context(), backtest.Request{
		Portfolio: req.Portfolio,
		Period:    domain.Period(req.Period),
	})
	if err != nil {
		status, outcome, msg := classify(err)
		s.metrics.observeBacktest(outcome, time.Since(start))
		if status >= 500 {
			log.Error("backtest failed", "outcome", outcome, "error", err)
		} else {
			log.Info("backtest rejected", "outcome", outcome, "error", err)
		}
		writeError(w, status, msg)
		return
	}

	s.metrics.observeBacktest("ok", time.Since(start))
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: NewBacktestResult(res)})
}

// classify maps an engine error onto an HTTP status, a metrics outcome label
// and the message shown to the client.
func classify(err error) (status int, outcome, msg string) {
	var (
		ve  *backtest.ValidationError
		ide *backtest.InsufficientDataError
		ipe *backtest.InvalidPriceError
		dse *backtest.DataSourceError
		te  *backtest.TimeoutError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, "validation", ve.Reason
	case errors.As(err, &ide):
		return http.StatusUnprocessableEntity, "insufficient_data", ide.Error()
	case errors.As(err, &ipe):
		return http.StatusUnprocessableEntity, "invalid_price", ipe.Error()
	case errors.As(err, &dse):
		return http.StatusBadGateway, "data_source", "価格データの取得に失敗しました: " + dse.Symbol
	case errors.As(err, &te):
		return http.StatusGatewayTimeout, "timeout", "バックテストがタイムアウトしました"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "cancelled", "リクエストがキャンセルされました"
	default:
		return http.StatusInternalServerError, "error", "バックテストの実行中にエラーが発生しました"
	}
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

type ctxKey int

const requestIDKey ctxKey = iota

// RequestID returns the request ID stored by the middleware, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func requestLogger(ctx context.Context, log *slog.Logger) *slog.Logger {
	if id := RequestID(ctx); id != "" {
		return log.With("request_id", id)
	}
	return log
}

// requestIDMiddleware propagates an incoming X-Request-ID or assigns a new one.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware writes one access-log line per request and feeds the
// HTTP metrics.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.observeHTTP(route, rec.status, elapsed)
		requestLogger(r.Context(), s.log).Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", elapsed,
			"remote", r.RemoteAddr,
		)
	})
}

// corsMiddleware allows the configured origins. "*" allows any origin.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (slices.Contains(s.origins, origin) || slices.Contains(s.origins, "*")) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Envelope{Success: false, Error: msg})
}
