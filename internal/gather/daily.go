package gather

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"basket/internal/domain"
	"basket/internal/provider"
	"basket/internal/store"
)

// Compile-time interface check.
var _ Gatherer = (*DailyGatherer)(nil)

// DailyGatherer pulls daily closes for a set of symbols through a caching
// provider so later backtests are served from disk.
type DailyGatherer struct {
	prices     provider.Provider
	bars       store.BarStore // optional; adds already-cached symbols
	targets    []domain.Symbol
	years      int
	maxWorkers int
	now        func() time.Time
	log        *slog.Logger

	fetched atomic.Int64
	failed  atomic.Int64
}

// NewDailyGatherer creates a DailyGatherer. When bars is non-nil, every
// symbol already present in the cache is refreshed as well.
func NewDailyGatherer(prices provider.Provider, bars store.BarStore, targets []domain.Symbol, years, maxWorkers int, log *slog.Logger) *DailyGatherer {
	if years <= 0 {
		years = 5
	}
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	if log == nil {
		log = slog.Default()
	}
	return &DailyGatherer{
		prices:     prices,
		bars:       bars,
		targets:    targets,
		years:      years,
		maxWorkers: maxWorkers,
		now:        time.Now,
		log:        log.With("gatherer", "daily"),
	}
}

// Name returns the gatherer identifier.
func (g *DailyGatherer) Name() string { return "daily" }

// Stats returns the counters of the last Run.
func (g *DailyGatherer) Stats() (fetched, failed int) {
	return int(g.fetched.Load()), int(g.failed.Load())
}

// Run fetches every target once. Individual failures are logged; Run fails
// only when nothing could be fetched.
func (g *DailyGatherer) Run(ctx context.Context) error {
	g.fetched.Store(0)
	g.failed.Store(0)

	targets, err := g.allTargets(ctx)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		g.log.Info("nothing to gather")
		return nil
	}

	dr := LastYears(g.now(), g.years)
	g.log.Info("gathering", "symbols", len(targets), "from", dr.Start.Format(domain.DateFormat), "to", dr.End.Format(domain.DateFormat))

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(g.maxWorkers)
	for _, sym := range targets {
		eg.Go(func() error {
			s, err := g.prices.DailySeries(ectx, sym, dr.Start, dr.End)
			if err != nil {
				if ectx.Err() != nil {
					return ectx.Err()
				}
				g.failed.Add(1)
				g.log.Warn("fetch failed", "symbol", sym.Code, "market", sym.Market, "error", err)
				return nil
			}
			g.fetched.Add(1)
			g.log.Debug("fetched", "symbol", sym.Code, "points", s.Len(), "last", s.Last().Format(domain.DateFormat))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	fetched, failed := g.Stats()
	g.log.Info("gather complete", "fetched", fetched, "failed", failed)
	if fetched == 0 && failed > 0 {
		return fmt.Errorf("all %d symbols failed", failed)
	}
	return nil
}

// allTargets merges the configured targets with cached symbols, without
// duplicates, configured ones first.
func (g *DailyGatherer) allTargets(ctx context.Context) ([]domain.Symbol, error) {
	seen := make(map[domain.Symbol]struct{})
	var out []domain.Symbol
	add := func(s domain.Symbol) {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, s := range g.targets {
		add(s)
	}
	if g.bars == nil {
		return out, nil
	}
	for _, m := range []domain.Market{domain.MarketJP, domain.MarketUS} {
		codes, err := g.bars.ListSymbols(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("listing cached %s symbols: %w", m, err)
		}
		for _, c := range codes {
			add(domain.Symbol{Code: c, Market: m})
		}
	}
	return out, nil
}
