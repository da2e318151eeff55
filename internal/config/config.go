package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the basket service.
type Config struct {
	Server   Server         `yaml:"server"`
	Storage  Storage        `yaml:"storage"`
	Provider ProviderConfig `yaml:"provider"`
	Alpaca   Alpaca         `yaml:"alpaca"`
	Backtest Backtest       `yaml:"backtest"`
	Logging  Logging        `yaml:"logging"`
	Gather   GatherConfig   `yaml:"gather"`
}

// Server holds network listener configuration.
type Server struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	GRPCPort    int      `yaml:"grpc_port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Storage holds paths for the price cache and the stock catalogue.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// ProviderConfig selects and tunes the market-data source.
type ProviderConfig struct {
	// Source is "yahoo" or "alpaca". Alpaca only serves US equities; JP
	// symbols and indices always go through Yahoo.
	Source          string        `yaml:"source"`
	YahooBaseURL    string        `yaml:"yahoo_base_url"`
	Cache           bool          `yaml:"cache"`
	StaleDays       int           `yaml:"stale_days"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// Backtest holds the numeric conventions and limits of the engine.
type Backtest struct {
	InitialCapital     float64           `yaml:"initial_capital"`
	TradingDaysPerYear float64           `yaml:"trading_days_per_year"`
	DaysPerYear        float64           `yaml:"days_per_year"`
	StdDev             string            `yaml:"stddev"`    // sample | population
	Calendar           string            `yaml:"calendar"`  // intersection | forward_fill
	Rebalance          string            `yaml:"rebalance"` // none | daily | monthly
	MaxSymbols         int               `yaml:"max_symbols"`
	WeightTolerance    float64           `yaml:"weight_tolerance"`
	Timeout            time.Duration     `yaml:"timeout"`
	FetchRetries       int               `yaml:"fetch_retries"`
	RetryBaseDelay     time.Duration     `yaml:"retry_base_delay"`
	Benchmarks         map[string]string `yaml:"benchmarks"` // market -> index code
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GatherConfig controls the price cache warm-up job.
type GatherConfig struct {
	Symbols    []string `yaml:"symbols"` // CODE:MARKET
	Years      int      `yaml:"years"`
	MaxWorkers int      `yaml:"max_workers"`
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: Server{
			Host:        "0.0.0.0",
			Port:        8463,
			GRPCPort:    9463,
			CORSOrigins: []string{"http://localhost:3847", "http://127.0.0.1:3847"},
		},
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/basket.db",
		},
		Provider: ProviderConfig{
			Source:          "yahoo",
			YahooBaseURL:    "https://query1.finance.yahoo.com",
			Cache:           true,
			StaleDays:       4,
			RateLimitPerMin: 120,
			RequestTimeout:  10 * time.Second,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		Alpaca: Alpaca{
			Feed: "iex",
		},
		Backtest: Backtest{
			InitialCapital:     100,
			TradingDaysPerYear: 252,
			DaysPerYear:        365.25,
			StdDev:             "sample",
			Calendar:           "intersection",
			Rebalance:          "none",
			MaxSymbols:         10,
			WeightTolerance:    0.01,
			Timeout:            30 * time.Second,
			FetchRetries:       2,
			RetryBaseDelay:     200 * time.Millisecond,
			Benchmarks:         map[string]string{"JP": "^N225", "US": "^GSPC"},
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Gather: GatherConfig{
			Years:      5,
			MaxWorkers: 4,
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path on top of
// Default(), and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to Default() plus
// environment overrides when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
		applyEnvOverrides(cfg)
		return cfg, nil
	}
	return cfg, err
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("GRPC_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.GRPCPort = p
		}
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Server.CORSOrigins = origins
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("PRICE_SOURCE"); v != "" {
		cfg.Provider.Source = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	// Standard Alpaca env vars (highest priority, canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
