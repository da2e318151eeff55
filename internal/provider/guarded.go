package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"basket/internal/domain"
	"basket/internal/util"
)

// Compile-time interface check.
var _ Provider = (*Guarded)(nil)

// GuardOptions tunes a Guarded provider.
type GuardOptions struct {
	Name            string
	RateLimitPerMin int
	RequestTimeout  time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
	// OnResult, when set, is called after every upstream attempt.
	OnResult func(source string, err error)
}

// Guarded wraps an upstream source with a client-side rate limit, a
// per-request timeout and a circuit breaker. Only transient failures count
// against the breaker; unknown symbols and empty ranges are normal answers.
type Guarded struct {
	next    Provider
	name    string
	limiter *util.RateLimiter
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
	onRes   func(string, error)
	log     *slog.Logger
}

// NewGuarded wraps next according to opts.
func NewGuarded(next Provider, opts GuardOptions, log *slog.Logger) *Guarded {
	if log == nil {
		log = slog.Default()
	}
	if opts.Name == "" {
		opts.Name = "upstream"
	}
	failures := opts.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	g := &Guarded{
		next:    next,
		name:    opts.Name,
		limiter: util.NewRateLimiter(opts.RateLimitPerMin),
		timeout: opts.RequestTimeout,
		onRes:   opts.OnResult,
		log:     log.With("provider", opts.Name),
	}
	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    opts.Name,
		Timeout: opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.log.Warn("circuit breaker state change", "from", from.String(), "to", to.String())
		},
	})
	return g
}

// DailySeries waits for a rate-limit token and calls next through the
// breaker. An open breaker is reported as ErrUnavailable.
func (g *Guarded) DailySeries(ctx context.Context, sym domain.Symbol, from, to time.Time) (domain.PriceSeries, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return domain.PriceSeries{}, err
	}

	res, err := g.cb.Execute(func() (interface{}, error) {
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		s, err := g.next.DailySeries(callCtx, sym, from, to)
		// A per-request timeout is an upstream stall, not a caller cancel.
		if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%s: request timed out after %s: %w", sym.Code, g.timeout, ErrUnavailable)
		}
		return s, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%s: %s circuit open: %w", sym.Code, g.name, ErrUnavailable)
	}
	if g.onRes != nil {
		g.onRes(g.name, err)
	}
	if err != nil {
		return domain.PriceSeries{}, err
	}
	return res.(domain.PriceSeries), nil
}

// State returns the breaker state name: "closed", "half-open" or "open".
func (g *Guarded) State() string { return g.cb.State().String() }
