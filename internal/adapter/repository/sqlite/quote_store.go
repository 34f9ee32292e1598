// Package sqlite keeps the quote cache in an embedded SQLite file so a
// single-node deployment can run without Postgres for market data.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/simaogato/wealthflow-portfolio/internal/domain"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS market_quotes (
	symbol         TEXT PRIMARY KEY,
	price          TEXT NOT NULL,
	previous_close TEXT,
	fetched_at     INTEGER NOT NULL
);
`

// QuoteStore implements domain.QuoteRepository on SQLite.
// fetched_at is stored as Unix nanoseconds so that ordering is numeric.
type QuoteStore struct {
	conn *sql.DB
	path string
}

// Open opens (creating when needed) the quote database at dbPath
func Open(dbPath string) (*QuoteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL lets readers proceed while an upsert is committing
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create quote schema: %w", err)
	}

	return &QuoteStore{conn: conn, path: dbPath}, nil
}

// Close closes the database connection
func (s *QuoteStore) Close() error {
	return s.conn.Close()
}

// Path returns the database file location
func (s *QuoteStore) Path() string {
	return s.path
}

// GetBySymbols returns the stored quotes of symbols keyed by symbol
func (s *QuoteStore) GetBySymbols(ctx context.Context, symbols []string) (map[string]*domain.Quote, error) {
	quotes := make(map[string]*domain.Quote, len(symbols))
	if len(symbols) == 0 {
		return quotes, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(symbols)), ",")
	args := make([]interface{}, len(symbols))
	for i, symbol := range symbols {
		args[i] = symbol
	}

	query := `SELECT symbol, price, previous_close, fetched_at FROM market_quotes WHERE symbol IN (` + placeholders + `)`

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q domain.Quote
		var priceStr string
		var previousCloseStr sql.NullString
		var fetchedAt int64

		if err := rows.Scan(&q.Symbol, &priceStr, &previousCloseStr, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}

		if q.Price, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("failed to parse price: %w", err)
		}
		if previousCloseStr.Valid {
			pc, err := decimal.NewFromString(previousCloseStr.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse previous_close: %w", err)
			}
			q.PreviousClose = decimal.NewNullDecimal(pc)
		}
		q.FetchedAt = time.Unix(0, fetchedAt).UTC()

		quotes[q.Symbol] = &q
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate quotes: %w", err)
	}

	return quotes, nil
}

// Upsert inserts or replaces the quote of a symbol unless the stored one is newer
func (s *QuoteStore) Upsert(ctx context.Context, q *domain.Quote) error {
	if err := q.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO market_quotes (symbol, price, previous_close, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET
			price = excluded.price,
			previous_close = excluded.previous_close,
			fetched_at = excluded.fetched_at
		WHERE market_quotes.fetched_at <= excluded.fetched_at
	`

	var previousClose interface{}
	if q.PreviousClose.Valid {
		previousClose = q.PreviousClose.Decimal.String()
	}

	_, err := s.conn.ExecContext(ctx, query,
		q.Symbol,
		q.Price.String(),
		previousClose,
		q.FetchedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert quote for %s: %w", q.Symbol, err)
	}

	return nil
}
