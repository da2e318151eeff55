package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"basket/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ StockStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS stocks (
	code   TEXT PRIMARY KEY,
	name   TEXT NOT NULL,
	market TEXT NOT NULL
);`

// SQLiteStore implements StockStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// schema and returns a ready-to-use SQLiteStore. ":memory:" is supported.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases coherent and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertStocks inserts stocks, updating name and market for known codes while
// keeping their original position in the catalogue.
func (s *SQLiteStore) UpsertStocks(ctx context.Context, stocks []domain.Stock) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stocks (code, name, market) VALUES (?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET name = excluded.name, market = excluded.market`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, st := range stocks {
		if _, err := stmt.ExecContext(ctx, st.Code, st.Name, string(st.Market)); err != nil {
			return fmt.Errorf("upserting %s: %w", st.Code, err)
		}
	}
	return tx.Commit()
}

// SearchStocks returns stocks whose code or name contains query.
func (s *SQLiteStore) SearchStocks(ctx context.Context, query string, limit int) ([]domain.Stock, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, market FROM stocks
		WHERE lower(code) LIKE ? ESCAPE '\' OR lower(name) LIKE ? ESCAPE '\'
		ORDER BY rowid
		LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Stock
	for rows.Next() {
		var st domain.Stock
		var market string
		if err := rows.Scan(&st.Code, &st.Name, &market); err != nil {
			return nil, err
		}
		st.Market = domain.Market(market)
		out = append(out, st)
	}
	return out, rows.Err()
}

// CountStocks returns the number of catalogue entries.
func (s *SQLiteStore) CountStocks(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM stocks`).Scan(&n)
	return n, err
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
