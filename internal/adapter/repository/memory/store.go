// Package memory provides process-local implementations of the repositories,
// used with STORE_DRIVER=memory and in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/simaogato/wealthflow-portfolio/internal/domain"
)

// Store keeps holdings and lots under one lock, so deleting a holding and its
// lots is a single atomic step. Records are copied in and out.
type Store struct {
	mu       sync.RWMutex
	holdings map[uuid.UUID]domain.Holding
	lots     map[uuid.UUID]domain.Lot
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		holdings: make(map[uuid.UUID]domain.Holding),
		lots:     make(map[uuid.UUID]domain.Lot),
	}
}

// Holdings returns the store as a domain.HoldingRepository
func (s *Store) Holdings() domain.HoldingRepository {
	return holdingRepository{s}
}

// Lots returns the store as a domain.LotRepository
func (s *Store) Lots() domain.LotRepository {
	return lotRepository{s}
}

type holdingRepository struct{ s *Store }

// List retrieves all holdings ordered by name
func (r holdingRepository) List(_ context.Context) ([]*domain.Holding, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	holdings := make([]*domain.Holding, 0, len(r.s.holdings))
	for _, h := range r.s.holdings {
		h := h
		holdings = append(holdings, &h)
	}
	sort.Slice(holdings, func(i, j int) bool {
		if holdings[i].Name != holdings[j].Name {
			return holdings[i].Name < holdings[j].Name
		}
		return holdings[i].ID.String() < holdings[j].ID.String()
	})
	return holdings, nil
}

// GetByID retrieves a holding by its ID
func (r holdingRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Holding, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	h, ok := r.s.holdings[id]
	if !ok {
		return nil, fmt.Errorf("holding %s: %w", id, domain.ErrNotFound)
	}
	return &h, nil
}

// Create creates a new holding
func (r holdingRepository) Create(_ context.Context, holding *domain.Holding) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.holdings[holding.ID]; exists {
		return fmt.Errorf("holding %s already exists", holding.ID)
	}
	r.s.holdings[holding.ID] = *holding
	return nil
}

// Update replaces a stored holding
func (r holdingRepository) Update(_ context.Context, holding *domain.Holding) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.holdings[holding.ID]; !exists {
		return fmt.Errorf("holding %s: %w", holding.ID, domain.ErrNotFound)
	}
	r.s.holdings[holding.ID] = *holding
	return nil
}

// Delete removes a holding and all of its lots
func (r holdingRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.holdings[id]; !exists {
		return fmt.Errorf("holding %s: %w", id, domain.ErrNotFound)
	}
	delete(r.s.holdings, id)
	for lotID, lot := range r.s.lots {
		if lot.HoldingID == id {
			delete(r.s.lots, lotID)
		}
	}
	return nil
}

// ListSymbols returns the distinct holding symbols, sorted
func (r holdingRepository) ListSymbols(_ context.Context) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.s.holdings))
	symbols := make([]string, 0, len(r.s.holdings))
	for _, h := range r.s.holdings {
		if h.Symbol == "" {
			continue
		}
		if _, dup := seen[h.Symbol]; dup {
			continue
		}
		seen[h.Symbol] = struct{}{}
		symbols = append(symbols, h.Symbol)
	}
	sort.Strings(symbols)
	return symbols, nil
}

type lotRepository struct{ s *Store }

// ListByHolding retrieves the lots of a holding, newest buy date first
func (r lotRepository) ListByHolding(_ context.Context, holdingID uuid.UUID) ([]*domain.Lot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.lotsOf(holdingID), nil
}

// ListByHoldings retrieves the lots of several holdings keyed by holding ID
func (r lotRepository) ListByHoldings(_ context.Context, holdingIDs []uuid.UUID) (map[uuid.UUID][]*domain.Lot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	byHolding := make(map[uuid.UUID][]*domain.Lot, len(holdingIDs))
	for _, id := range holdingIDs {
		if lots := r.s.lotsOf(id); len(lots) > 0 {
			byHolding[id] = lots
		}
	}
	return byHolding, nil
}

// lotsOf must be called with the lock held
func (s *Store) lotsOf(holdingID uuid.UUID) []*domain.Lot {
	var lots []*domain.Lot
	for _, lot := range s.lots {
		if lot.HoldingID == holdingID {
			lot := lot
			lots = append(lots, &lot)
		}
	}
	sort.Slice(lots, func(i, j int) bool {
		if !lots[i].BuyDate.Time().Equal(lots[j].BuyDate.Time()) {
			return lots[j].BuyDate.Before(lots[i].BuyDate)
		}
		return lots[j].CreatedAt.Before(lots[i].CreatedAt)
	})
	return lots
}

// GetByID retrieves a lot by its ID
func (r lotRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Lot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	lot, ok := r.s.lots[id]
	if !ok {
		return nil, fmt.Errorf("lot %s: %w", id, domain.ErrNotFound)
	}
	return &lot, nil
}

// Create creates a new lot of an existing holding
func (r lotRepository) Create(_ context.Context, lot *domain.Lot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.holdings[lot.HoldingID]; !ok {
		return fmt.Errorf("holding %s: %w", lot.HoldingID, domain.ErrNotFound)
	}
	if _, exists := r.s.lots[lot.ID]; exists {
		return fmt.Errorf("lot %s already exists", lot.ID)
	}
	r.s.lots[lot.ID] = *lot
	return nil
}

// Update replaces a stored lot; the owning holding is kept
func (r lotRepository) Update(_ context.Context, lot *domain.Lot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.lots[lot.ID]
	if !ok {
		return fmt.Errorf("lot %s: %w", lot.ID, domain.ErrNotFound)
	}
	updated := *lot
	updated.HoldingID = stored.HoldingID
	r.s.lots[lot.ID] = updated
	return nil
}

// Delete removes a lot
func (r lotRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.lots[id]; !ok {
		return fmt.Errorf("lot %s: %w", id, domain.ErrNotFound)
	}
	delete(r.s.lots, id)
	return nil
}
