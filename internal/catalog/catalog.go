// Package catalog serves the searchable list of stocks a portfolio can be
// built from.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"basket/internal/domain"
	"basket/internal/store"
)

// MaxResults caps the number of search hits returned.
const MaxResults = 10

// SeedStocks is the catalogue installed into an empty store.
var SeedStocks = []domain.Stock{
	// Japan
	{Code: "7203.T", Name: "トヨタ自動車", Market: domain.MarketJP},
	{Code: "6758.T", Name: "ソニーグループ", Market: domain.MarketJP},
	{Code: "9984.T", Name: "ソフトバンクグループ", Market: domain.MarketJP},
	{Code: "6861.T", Name: "キーエンス", Market: domain.MarketJP},
	{Code: "9432.T", Name: "日本電信電話", Market: domain.MarketJP},
	{Code: "6501.T", Name: "日立製作所", Market: domain.MarketJP},
	{Code: "8306.T", Name: "三菱UFJフィナンシャル・グループ", Market: domain.MarketJP},
	{Code: "6902.T", Name: "デンソー", Market: domain.MarketJP},
	{Code: "7267.T", Name: "ホンダ", Market: domain.MarketJP},
	{Code: "9433.T", Name: "KDDI", Market: domain.MarketJP},
	// United States
	{Code: "AAPL", Name: "Apple Inc.", Market: domain.MarketUS},
	{Code: "GOOGL", Name: "Alphabet Inc.", Market: domain.MarketUS},
	{Code: "MSFT", Name: "Microsoft Corp.", Market: domain.MarketUS},
	{Code: "AMZN", Name: "Amazon.com Inc.", Market: domain.MarketUS},
	{Code: "NVDA", Name: "NVIDIA Corp.", Market: domain.MarketUS},
	{Code: "META", Name: "Meta Platforms Inc.", Market: domain.MarketUS},
	{Code: "TSLA", Name: "Tesla Inc.", Market: domain.MarketUS},
	{Code: "JPM", Name: "JPMorgan Chase & Co.", Market: domain.MarketUS},
	{Code: "V", Name: "Visa Inc.", Market: domain.MarketUS},
	{Code: "JNJ", Name: "Johnson & Johnson", Market: domain.MarketUS},
}

// Catalog wraps a StockStore with the search rules of the API.
type Catalog struct {
	stocks store.StockStore
	log    *slog.Logger
}

// New returns a Catalog over st, seeding it with SeedStocks when empty.
func New(ctx context.Context, st store.StockStore, log *slog.Logger) (*Catalog, error) {
	if log == nil {
		log = slog.Default()
	}
	c := &Catalog{stocks: st, log: log.With("component", "catalog")}

	n, err := st.CountStocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting stocks: %w", err)
	}
	if n == 0 {
		if err := st.UpsertStocks(ctx, SeedStocks); err != nil {
			return nil, fmt.Errorf("seeding catalogue: %w", err)
		}
		c.log.Info("catalogue seeded", "stocks", len(SeedStocks))
	}
	return c, nil
}

// Search returns up to MaxResults stocks whose code or name contains q,
// case-insensitively. An empty query lists the head of the catalogue.
func (c *Catalog) Search(ctx context.Context, q string) ([]domain.Stock, error) {
	q = strings.TrimSpace(q)
	stocks, err := c.stocks.SearchStocks(ctx, q, MaxResults)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", q, err)
	}
	if stocks == nil {
		stocks = []domain.Stock{}
	}
	return stocks, nil
}
