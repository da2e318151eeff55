package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"basket/internal/domain"
	"basket/internal/store"
	"basket/internal/util"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	c, err := New(context.Background(), st, util.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestSearchEmptyQueryListsHead(t *testing.T) {
	c := newTestCatalog(t)
	got, err := c.Search(context.Background(), "")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(got) != MaxResults {
		t.Fatalf("got %d stocks, want %d", len(got), MaxResults)
	}
	if got[0].Code != "7203.T" {
		t.Errorf("first stock = %s, want 7203.T", got[0].Code)
	}
}

func TestSearchMatchesCodeAndName(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	tests := []struct {
		q    string
		want string
	}{
		{"aapl", "AAPL"},
		{"ソニー", "6758.T"},
		{"visa", "V"},
		{"7267", "7267.T"},
	}
	for _, tt := range tests {
		got, err := c.Search(ctx, tt.q)
		if err != nil {
			t.Fatalf("Search(%q): %v", tt.q, err)
		}
		found := false
		for _, s := range got {
			if s.Code == tt.want {
				found = true
			}
		}
		if !found {
			t.Errorf("Search(%q) = %v, want it to include %s", tt.q, got, tt.want)
		}
	}

	none, err := c.Search(ctx, "zzzz")
	if err != nil {
		t.Fatal(err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("Search(zzzz) = %#v, want empty non-nil slice", none)
	}
}

func TestNewDoesNotReseed(t *testing.T) {
	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	ctx := context.Background()

	if err := st.UpsertStocks(ctx, []domain.Stock{{Code: "SPY", Name: "SPDR S&P 500", Market: domain.MarketUS}}); err != nil {
		t.Fatal(err)
	}
	if _, err := New(ctx, st, util.Discard()); err != nil {
		t.Fatal(err)
	}
	if n, _ := st.CountStocks(ctx); n != 1 {
		t.Errorf("CountStocks = %d, want 1 (existing catalogue kept)", n)
	}
}
