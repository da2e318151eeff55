package provider

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"basket/internal/domain"
	"basket/internal/store"
	"basket/internal/util"
)

// Compile-time interface check.
var _ Provider = (*Cached)(nil)

// coverageSlack is how far after the requested start the first stored bar
// may fall before the cache is considered incomplete. Covers long weekends
// and exchange holidays at the head of the window.
const coverageSlack = 7 * 24 * time.Hour

// Cached serves daily closes from a BarStore and falls through to an
// upstream Provider when the stored history does not cover the request.
// Fetched series are written back so later runs are served locally.
type Cached struct {
	bars      store.BarStore
	upstream  Provider
	staleDays int
	now       func() time.Time
	log       *slog.Logger

	// firstBar records, per symbol, the earliest close upstream returned for
	// a request starting before it: the start of that symbol's history.
	mu       sync.Mutex
	firstBar map[string]time.Time
}

// NewCached wraps upstream with a read-through cache over bars. staleDays is
// the number of days the newest stored bar may lag the last trading day.
func NewCached(bars store.BarStore, upstream Provider, staleDays int, log *slog.Logger) *Cached {
	if log == nil {
		log = slog.Default()
	}
	return &Cached{
		bars:      bars,
		upstream:  upstream,
		staleDays: staleDays,
		firstBar:  make(map[string]time.Time),
		now:       time.Now,
		log:       log.With("provider", "cache"),
	}
}

// DailySeries returns cached closes when they cover [from, to], otherwise
// refreshes from upstream. If upstream is transiently unavailable and some
// history is cached, the cached history is served instead.
func (c *Cached) DailySeries(ctx context.Context, sym domain.Symbol, from, to time.Time) (domain.PriceSeries, error) {
	from, to = domain.Day(from), domain.Day(to)

	stored, err := c.bars.ReadBars(ctx, sym.Code, sym.Market, from, to.Add(24*time.Hour-time.Millisecond))
	if err != nil {
		c.log.Warn("cache read failed", "symbol", sym.Code, "error", err)
		stored = nil
	}
	cachedSeries := barsToSeries(sym, stored).Between(from, to)

	if c.covers(sym, cachedSeries, from, to) {
		return cachedSeries, nil
	}

	fresh, err := c.upstream.DailySeries(ctx, sym, from, to)
	if err != nil {
		if IsTransient(err) && cachedSeries.Len() > 0 {
			c.log.Warn("upstream unavailable, serving stale cache",
				"symbol", sym.Code, "cached_last", cachedSeries.Last().Format(domain.DateFormat), "error", err)
			return cachedSeries, nil
		}
		return domain.PriceSeries{}, err
	}

	if fresh.Len() > 0 && fresh.First().After(from.Add(coverageSlack)) {
		c.mu.Lock()
		c.firstBar[cacheKey(sym)] = fresh.First()
		c.mu.Unlock()
	}

	if err := c.bars.WriteBars(ctx, sym.Market, seriesToBars(fresh)); err != nil {
		c.log.Warn("cache write failed", "symbol", sym.Code, "error", err)
	} else {
		c.log.Debug("cache refreshed", "symbol", sym.Code, "points", fresh.Len())
	}
	return fresh, nil
}

// covers reports whether the cached series spans the requested window.
func (c *Cached) covers(sym domain.Symbol, s domain.PriceSeries, from, to time.Time) bool {
	if s.Len() == 0 {
		return false
	}
	if s.First().After(from.Add(coverageSlack)) && !c.startsHistory(sym, s.First()) {
		return false
	}

	cal := util.NewTradingCalendar(sym.Market)
	end := to
	if today := cal.Today(c.now()); today.Before(end) {
		end = today
	}
	// The session for "today" may not have closed yet.
	want := cal.LastTradingDay(end).AddDate(0, 0, -c.staleDays)
	return !s.Last().Before(want)
}

// startsHistory reports whether first is at or before the recorded start of
// the symbol's history.
func (c *Cached) startsHistory(sym domain.Symbol, first time.Time) bool {
	c.mu.Lock()
	listed, ok := c.firstBar[cacheKey(sym)]
	c.mu.Unlock()
	return ok && !first.After(listed)
}

func cacheKey(sym domain.Symbol) string { return string(sym.Market) + ":" + sym.Code }

func barsToSeries(sym domain.Symbol, bars []domain.Bar) domain.PriceSeries {
	out := domain.PriceSeries{Symbol: sym}
	for _, b := range bars {
		d := domain.Day(b.Timestamp.UTC())
		if n := len(out.Points); n > 0 && !d.After(out.Points[n-1].Date) {
			continue
		}
		out.Points = append(out.Points, domain.PricePoint{Date: d, Close: b.Close})
	}
	return out
}

func seriesToBars(s domain.PriceSeries) []domain.Bar {
	bars := make([]domain.Bar, 0, s.Len())
	for _, p := range s.Points {
		bars = append(bars, domain.Bar{
			Symbol:    s.Symbol.Code,
			Timestamp: p.Date,
			Open:      p.Close,
			High:      p.Close,
			Low:       p.Close,
			Close:     p.Close,
		})
	}
	return bars
}
