package domain

import (
	"context"

	"github.com/google/uuid"
)

// HoldingRepository defines the interface for holding persistence operations
type HoldingRepository interface {
	// List retrieves all holdings ordered by name
	List(ctx context.Context) ([]*Holding, error)

	// GetByID retrieves a holding by its ID
	// Returns an error wrapping ErrNotFound if it does not exist
	GetByID(ctx context.Context, id uuid.UUID) (*Holding, error)

	// Create creates a new holding
	Create(ctx context.Context, holding *Holding) error

	// Update persists a holding that was loaded and patched
	Update(ctx context.Context, holding *Holding) error

	// Delete removes a holding and, atomically, all of its lots
	Delete(ctx context.Context, id uuid.UUID) error

	// ListSymbols returns the distinct symbols referenced by holdings, sorted
	ListSymbols(ctx context.Context) ([]string, error)
}

// LotRepository defines the interface for lot persistence operations
type LotRepository interface {
	// ListByHolding retrieves the lots of a holding, newest buy date first
	ListByHolding(ctx context.Context, holdingID uuid.UUID) ([]*Lot, error)

	// ListByHoldings retrieves the lots of several holdings keyed by holding ID,
	// newest buy date first within each holding
	ListByHoldings(ctx context.Context, holdingIDs []uuid.UUID) (map[uuid.UUID][]*Lot, error)

	// GetByID retrieves a lot by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Lot, error)

	// Create creates a new lot; the parent holding must exist
	Create(ctx context.Context, lot *Lot) error

	// Update persists a lot that was loaded and patched
	Update(ctx context.Context, lot *Lot) error

	// Delete removes a lot
	Delete(ctx context.Context, id uuid.UUID) error
}

// QuoteRepository is the durable symbol-keyed quote store
type QuoteRepository interface {
	// GetBySymbols returns the stored quotes of the given symbols, keyed by symbol.
	// Symbols without a stored quote are absent from the map.
	GetBySymbols(ctx context.Context, symbols []string) (map[string]*Quote, error)

	// Upsert inserts the quote or overwrites the stored one unless the stored one is newer
	Upsert(ctx context.Context, quote *Quote) error
}

// PriceSource is the upstream market data provider
type PriceSource interface {
	// Name identifies the provider in logs
	Name() string

	// Fetch returns the current price snapshot of symbol or fails
	Fetch(ctx context.Context, symbol string) (PriceSnapshot, error)
}
