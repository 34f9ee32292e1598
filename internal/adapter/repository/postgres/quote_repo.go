package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/simaogato/wealthflow-portfolio/internal/domain"
)

// quoteRepository implements domain.QuoteRepository on the market_quotes table
type quoteRepository struct {
	db *DB
}

// NewQuoteRepository creates a new quote repository
func NewQuoteRepository(db *DB) domain.QuoteRepository {
	return &quoteRepository{db: db}
}

// GetBySymbols returns the stored quotes of symbols keyed by symbol
func (r *quoteRepository) GetBySymbols(ctx context.Context, symbols []string) (map[string]*domain.Quote, error) {
	quotes := make(map[string]*domain.Quote, len(symbols))
	if len(symbols) == 0 {
		return quotes, nil
	}

	query := `
		SELECT symbol, price::text, previous_close::text, fetched_at
		FROM market_quotes
		WHERE symbol = ANY($1)
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(symbols))
	if err != nil {
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q domain.Quote
		var priceStr string
		var previousCloseStr sql.NullString

		if err := rows.Scan(&q.Symbol, &priceStr, &previousCloseStr, &q.FetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}

		// Parse price and previous_close (NUMERIC, previous_close nullable)
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

		quotes[q.Symbol] = &q
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate quotes: %w", err)
	}

	return quotes, nil
}

// Upsert inserts or replaces the quote of a symbol.
// A row fetched later than the incoming quote is kept (last write wins by fetch time).
func (r *quoteRepository) Upsert(ctx context.Context, q *domain.Quote) error {
	if err := q.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO market_quotes (symbol, price, previous_close, fetched_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol) DO UPDATE SET
			price = EXCLUDED.price,
			previous_close = EXCLUDED.previous_close,
			fetched_at = EXCLUDED.fetched_at
		WHERE market_quotes.fetched_at <= EXCLUDED.fetched_at
	`

	var previousClose interface{}
	if q.PreviousClose.Valid {
		previousClose = q.PreviousClose.Decimal.String()
	}

	_, err := r.db.ExecContext(ctx, query,
		q.Symbol,
		q.Price.String(),
		previousClose,
		q.FetchedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert quote for %s: %w", q.Symbol, err)
	}

	return nil
}
