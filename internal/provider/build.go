package provider

import (
	"fmt"
	"log/slog"
	"net/http"

	"basket/internal/config"
	"basket/internal/domain"
	"basket/internal/store"
)

// Build assembles the provider stack described by cfg: guarded upstream
// sources, market routing, and the Parquet read-through cache when bars is
// non-nil and caching is enabled. onResult observes every upstream attempt
// and may be nil.
func Build(cfg *config.Config, bars store.BarStore, onResult func(string, error), log *slog.Logger) (Provider, error) {
	if log == nil {
		log = slog.Default()
	}
	pc := cfg.Provider

	guard := func(name string, p Provider) Provider {
		return NewGuarded(p, GuardOptions{
			Name:            name,
			RateLimitPerMin: pc.RateLimitPerMin,
			RequestTimeout:  pc.RequestTimeout,
			BreakerFailures: pc.BreakerFailures,
			BreakerCooldown: pc.BreakerCooldown,
			OnResult:        onResult,
		}, log)
	}

	yahoo := guard("yahoo", NewYahoo(pc.YahooBaseURL, &http.Client{Timeout: pc.RequestTimeout}, log))

	var upstream Provider
	switch pc.Source {
	case "", "yahoo":
		upstream = yahoo
	case "alpaca":
		if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
			return nil, fmt.Errorf("provider source alpaca requires alpaca.api_key and alpaca.api_secret")
		}
		alpaca := guard("alpaca", NewAlpaca(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.Alpaca.Feed, log))
		upstream = &Router{
			Default: yahoo,
			Markets: map[domain.Market]Provider{domain.MarketUS: alpaca},
			Indices: yahoo,
		}
	default:
		return nil, fmt.Errorf("unknown provider source %q", pc.Source)
	}

	if pc.Cache && bars != nil {
		return NewCached(bars, upstream, pc.StaleDays, log), nil
	}
	return upstream, nil
}
