// Package store defines storage interfaces for the daily price cache and the
// stock catalogue, with Parquet and SQLite implementations.
package store

import (
	"context"
	"time"

	"basket/internal/domain"
)

// BarStore persists and retrieves daily OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars for the given market, merging with
	// anything already stored for the same (symbol, day).
	WriteBars(ctx context.Context, market domain.Market, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within [start, end],
	// ordered by timestamp.
	ReadBars(ctx context.Context, symbol string, market domain.Market, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market domain.Market) ([]string, error)
}

// StockStore persists the searchable stock catalogue.
type StockStore interface {
	// UpsertStocks inserts stocks or updates name and market of existing codes.
	UpsertStocks(ctx context.Context, stocks []domain.Stock) error

	// SearchStocks returns stocks whose code or name contains query
	// (case-insensitive), in insertion order, at most limit entries. An empty
	// query matches everything.
	SearchStocks(ctx context.Context, query string, limit int) ([]domain.Stock, error)

	// CountStocks returns the catalogue size.
	CountStocks(ctx context.Context) (int, error)
}
