package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"basket/internal/config"
	"basket/internal/gather"
	"basket/internal/provider"
	"basket/internal/store"
	"basket/internal/util"
)

func main() {
	cfgPath := "config/basket.yaml"
	if p := os.Getenv("BASKET_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	targets, err := gather.ParseTargets(cfg.Gather.Symbols)
	if err != nil {
		log.Fatalf("invalid gather.symbols: %v", err)
	}

	// The gatherer always writes through the cache, whatever provider.cache says.
	cfg.Provider.Cache = true
	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	prices, err := provider.Build(cfg, pstore, nil, logger)
	if err != nil {
		log.Fatalf("failed to build price provider: %v", err)
	}

	gatherer := gather.NewDailyGatherer(prices, pstore, targets, cfg.Gather.Years, cfg.Gather.MaxWorkers, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting gatherer", "name", gatherer.Name(), "targets", len(targets))
	if err := gatherer.Run(ctx); err != nil {
		log.Fatalf("gatherer error: %v", err)
	}
	fetched, failed := gatherer.Stats()
	logger.Info("gatherer finished", "fetched", fetched, "failed", failed)
}
