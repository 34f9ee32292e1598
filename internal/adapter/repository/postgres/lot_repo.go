package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/simaogato/wealthflow-portfolio/internal/domain"
)

// lotRepository implements domain.LotRepository
type lotRepository struct {
	db *DB
}

// NewLotRepository creates a new lot repository
func NewLotRepository(db *DB) domain.LotRepository {
	return &lotRepository{db: db}
}

const lotColumns = `id, holding_id, buy_date, buy_price::text, quantity::text, created_at, updated_at`

func scanLot(row rowScanner) (*domain.Lot, error) {
	var lot domain.Lot
	var buyPriceStr, quantityStr string

	err := row.Scan(
		&lot.ID,
		&lot.HoldingID,
		&lot.BuyDate,
		&buyPriceStr,
		&quantityStr,
		&lot.CreatedAt,
		&lot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// Parse buy_price and quantity (NUMERIC)
	if lot.BuyPrice, err = decimal.NewFromString(buyPriceStr); err != nil {
		return nil, fmt.Errorf("failed to parse buy_price: %w", err)
	}
	if lot.Quantity, err = decimal.NewFromString(quantityStr); err != nil {
		return nil, fmt.Errorf("failed to parse quantity: %w", err)
	}

	return &lot, nil
}

// ListByHolding retrieves the lots of a holding, newest buy date first
func (r *lotRepository) ListByHolding(ctx context.Context, holdingID uuid.UUID) ([]*domain.Lot, error) {
	query := `
		SELECT ` + lotColumns + `
		FROM portfolio_lots
		WHERE holding_id = $1
		ORDER BY buy_date DESC, created_at DESC
	`

	return r.query(ctx, query, holdingID)
}

// ListByHoldings retrieves the lots of several holdings in a single query
func (r *lotRepository) ListByHoldings(ctx context.Context, holdingIDs []uuid.UUID) (map[uuid.UUID][]*domain.Lot, error) {
	byHolding := make(map[uuid.UUID][]*domain.Lot, len(holdingIDs))
	if len(holdingIDs) == 0 {
		return byHolding, nil
	}

	ids := make([]string, len(holdingIDs))
	for i, id := range holdingIDs {
		ids[i] = id.String()
	}

	query := `
		SELECT ` + lotColumns + `
		FROM portfolio_lots
		WHERE holding_id = ANY($1::uuid[])
		ORDER BY holding_id, buy_date DESC, created_at DESC
	`

	lots, err := r.query(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	for _, lot := range lots {
		byHolding[lot.HoldingID] = append(byHolding[lot.HoldingID], lot)
	}

	return byHolding, nil
}

func (r *lotRepository) query(ctx context.Context, query string, args ...interface{}) ([]*domain.Lot, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer rows.Close()

	var lots []*domain.Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		lots = append(lots, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lots: %w", err)
	}

	return lots, nil
}

// GetByID retrieves a lot by its ID
func (r *lotRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM portfolio_lots WHERE id = $1`

	lot, err := scanLot(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lot %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get lot by ID: %w", err)
	}

	return lot, nil
}

// Create creates a new lot
func (r *lotRepository) Create(ctx context.Context, lot *domain.Lot) error {
	query := `
		INSERT INTO portfolio_lots (id, holding_id, buy_date, buy_price, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		lot.ID,
		lot.HoldingID,
		lot.BuyDate,
		lot.BuyPrice.String(),
		lot.Quantity.String(),
		lot.CreatedAt,
		lot.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" { // foreign_key_violation
			return fmt.Errorf("holding %s: %w", lot.HoldingID, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to create lot: %w", err)
	}

	return nil
}

// Update persists a lot that was loaded and patched; holding_id is never rewritten
func (r *lotRepository) Update(ctx context.Context, lot *domain.Lot) error {
	query := `
		UPDATE portfolio_lots
		SET buy_date = $2, buy_price = $3, quantity = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		lot.ID,
		lot.BuyDate,
		lot.BuyPrice.String(),
		lot.Quantity.String(),
		lot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update lot: %w", err)
	}

	return expectOneRow(result, "lot", lot.ID)
}

// Delete removes a lot
func (r *lotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM portfolio_lots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete lot: %w", err)
	}

	return expectOneRow(result, "lot", id)
}
