// Package portfolio exposes the holdings, lots and quotes operations used by the
// transports. It owns no state: holdings and lots come from the repositories,
// prices from the quote cache, and figures from the valuation engine.
package portfolio

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/simaogato/wealthflow-portfolio/internal/domain"
	"github.com/simaogato/wealthflow-portfolio/internal/usecase/quotes"
	"github.com/simaogato/wealthflow-portfolio/internal/usecase/valuation"
)

// QuoteCache is the subset of quotes.Cache the service relies on
type QuoteCache interface {
	Resolve(ctx context.Context, symbols []string) quotes.Results
	ForceRefresh(ctx context.Context, symbols []string) (quotes.Results, error)
	GetSingle(ctx context.Context, symbol string) (*domain.Quote, error)
}

// CreateHoldingInput carries the fields of a new holding
type CreateHoldingInput struct {
	Symbol   string
	Code     string
	Name     string
	Currency string // defaults to domain.DefaultCurrency
}

// CreateLotInput carries the fields of a new lot
type CreateLotInput struct {
	BuyDate  domain.Date
	BuyPrice decimal.Decimal
	Quantity decimal.Decimal
}

// Service handles portfolio operations
type Service struct {
	HoldingRepo domain.HoldingRepository
	LotRepo     domain.LotRepository
	Quotes      QuoteCache

	now func() time.Time
	log zerolog.Logger
}

// NewService creates a new Service instance
func NewService(holdingRepo domain.HoldingRepository, lotRepo domain.LotRepository, cache QuoteCache, log zerolog.Logger) *Service {
	return &Service{
		HoldingRepo: holdingRepo,
		LotRepo:     lotRepo,
		Quotes:      cache,
		now:         time.Now,
		log:         log.With().Str("component", "portfolio").Logger(),
	}
}

// ListPortfolio returns every holding valuated against its current quote,
// ordered by holding name. Holdings whose quote cannot be resolved are still
// listed, without market figures.
func (s *Service) ListPortfolio(ctx context.Context) ([]valuation.HoldingValuation, error) {
	holdings, quoteMap, err := s.loadPortfolio(ctx)
	if err != nil {
		return nil, err
	}
	return valuation.Valuate(holdings, quoteMap), nil
}

// Summary returns portfolio totals per currency
func (s *Service) Summary(ctx context.Context) ([]valuation.PortfolioSummary, error) {
	holdings, quoteMap, err := s.loadPortfolio(ctx)
	if err != nil {
		return nil, err
	}
	return valuation.Summarize(holdings, quoteMap), nil
}

func (s *Service) loadPortfolio(ctx context.Context) ([]domain.HoldingWithLots, map[string]*domain.Quote, error) {
	holdings, err := s.HoldingRepo.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	sort.SliceStable(holdings, func(i, j int) bool {
		return strings.ToLower(holdings[i].Name) < strings.ToLower(holdings[j].Name)
	})

	ids := make([]uuid.UUID, len(holdings))
	symbols := make([]string, len(holdings))
	for i, h := range holdings {
		ids[i] = h.ID
		symbols[i] = h.Symbol
	}

	lotsByHolding, err := s.LotRepo.ListByHoldings(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list lots: %w", err)
	}

	withLots := make([]domain.HoldingWithLots, len(holdings))
	for i, h := range holdings {
		lots := lotsByHolding[h.ID]
		sortNewestFirst(lots)
		withLots[i] = domain.HoldingWithLots{Holding: h, Lots: lots}
	}

	results := s.Quotes.Resolve(ctx, symbols)
	if failed := results.Errors(); len(failed) > 0 {
		s.log.Warn().Int("failed", len(failed)).Msg("Some quotes are unavailable, holdings valuated without them")
	}

	return withLots, results.Quotes(), nil
}

// GetLots returns the lots of one holding valuated against its current quote
func (s *Service) GetLots(ctx context.Context, holdingID uuid.UUID) ([]valuation.LotValuation, error) {
	holding, err := s.HoldingRepo.GetByID(ctx, holdingID)
	if err != nil {
		return nil, err
	}

	lots, err := s.LotRepo.ListByHolding(ctx, holdingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lots: %w", err)
	}
	sortNewestFirst(lots)

	res := s.Quotes.Resolve(ctx, []string{holding.Symbol})[holding.Symbol]
	return valuation.ValuateLots(lots, res.Quote), nil
}

// CreateHolding validates and stores a new holding
func (s *Service) CreateHolding(ctx context.Context, in CreateHoldingInput) (*domain.Holding, error) {
	now := s.now().UTC()
	holding := &domain.Holding{
		ID:        uuid.New(),
		Symbol:    in.Symbol,
		Code:      in.Code,
		Name:      in.Name,
		Currency:  in.Currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if strings.TrimSpace(holding.Currency) == "" {
		holding.Currency = domain.DefaultCurrency
	}
	holding.Normalize()
	if err := holding.Validate(); err != nil {
		return nil, err
	}

	if err := s.HoldingRepo.Create(ctx, holding); err != nil {
		return nil, err
	}

	s.log.Info().Str("holding_id", holding.ID.String()).Str("symbol", holding.Symbol).Msg("Holding created")
	return holding, nil
}

// UpdateHolding applies patch to an existing holding
func (s *Service) UpdateHolding(ctx context.Context, id uuid.UUID, patch domain.HoldingPatch) (*domain.Holding, error) {
	if patch.IsEmpty() {
		return nil, &domain.ValidationError{Field: "patch", Reason: "has no fields"}
	}

	holding, err := s.HoldingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := patch.Apply(holding); err != nil {
		return nil, err
	}
	holding.UpdatedAt = s.now().UTC()

	if err := s.HoldingRepo.Update(ctx, holding); err != nil {
		return nil, err
	}
	return holding, nil
}

// DeleteHolding removes a holding together with its lots
func (s *Service) DeleteHolding(ctx context.Context, id uuid.UUID) error {
	if err := s.HoldingRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("holding_id", id.String()).Msg("Holding deleted")
	return nil
}

// CreateLot validates and stores a new lot of an existing holding
func (s *Service) CreateLot(ctx context.Context, holdingID uuid.UUID, in CreateLotInput) (*domain.Lot, error) {
	now := s.now().UTC()
	lot := &domain.Lot{
		ID:        uuid.New(),
		HoldingID: holdingID,
		BuyDate:   in.BuyDate,
		BuyPrice:  in.BuyPrice,
		Quantity:  in.Quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := lot.Validate(); err != nil {
		return nil, err
	}

	// Verify holding exists
	if _, err := s.HoldingRepo.GetByID(ctx, holdingID); err != nil {
		return nil, err
	}

	if err := s.LotRepo.Create(ctx, lot); err != nil {
		return nil, err
	}
	return lot, nil
}

// UpdateLot applies patch to an existing lot
func (s *Service) UpdateLot(ctx context.Context, id uuid.UUID, patch domain.LotPatch) (*domain.Lot, error) {
	if patch.IsEmpty() {
		return nil, &domain.ValidationError{Field: "patch", Reason: "has no fields"}
	}

	lot, err := s.LotRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := patch.Apply(lot); err != nil {
		return nil, err
	}
	lot.UpdatedAt = s.now().UTC()

	if err := s.LotRepo.Update(ctx, lot); err != nil {
		return nil, err
	}
	return lot, nil
}

// DeleteLot removes a lot
func (s *Service) DeleteLot(ctx context.Context, id uuid.UUID) error {
	return s.LotRepo.Delete(ctx, id)
}

// RefreshQuotes fetches the given symbols (all holding symbols when empty)
// upstream, bypassing freshness
func (s *Service) RefreshQuotes(ctx context.Context, symbols []string) (quotes.Results, error) {
	return s.Quotes.ForceRefresh(ctx, symbols)
}

// GetQuotes returns the cached quotes of symbols, refreshing stale ones
func (s *Service) GetQuotes(ctx context.Context, symbols []string) (quotes.Results, error) {
	if len(domain.NormalizeSymbols(symbols)) == 0 {
		return nil, &domain.ValidationError{Field: "symbols", Reason: "at least one symbol is required"}
	}
	return s.Quotes.Resolve(ctx, symbols), nil
}

// GetQuote returns the cached quote of one symbol
func (s *Service) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	return s.Quotes.GetSingle(ctx, symbol)
}

func sortNewestFirst(lots []*domain.Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		return lots[j].BuyDate.Before(lots[i].BuyDate)
	})
}
