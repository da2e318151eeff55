package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"basket/internal/api"
	"basket/internal/backtest"
	"basket/internal/catalog"
	"basket/internal/config"
	"basket/internal/httpapi"
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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	sqlStore, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open sqlite store: %v", err)
	}
	defer sqlStore.Close()

	stocks, err := catalog.New(ctx, sqlStore, logger)
	if err != nil {
		log.Fatalf("failed to initialize stock catalog: %v", err)
	}

	metrics := httpapi.NewTelemetry()
	prices, err := provider.Build(cfg, pstore, metrics.ObserveProvider, logger)
	if err != nil {
		log.Fatalf("failed to build price provider: %v", err)
	}

	opts, err := backtest.OptionsFromConfig(cfg.Backtest)
	if err != nil {
		log.Fatalf("invalid backtest config: %v", err)
	}
	engine := backtest.NewEngine(prices, opts, logger)

	handler := httpapi.NewServer(engine, stocks, metrics, cfg.Server.CORSOrigins, logger).Handler()
	srv := api.NewServer(cfg, handler, logger)

	logger.Info("basket-server starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"grpc_port", cfg.Server.GRPCPort,
		"source", cfg.Provider.Source,
	)
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
	logger.Info("basket-server stopped")
}
