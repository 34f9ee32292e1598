// Package yahoo is a price source backed by Yahoo Finance through piquette/finance-go.
package yahoo

import (
	"context"
	"fmt"

	"github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
	"github.com/rs/zerolog"
	"github.com/simaogato/wealthflow-portfolio/internal/domain"
)

// QuoteGetter fetches one Yahoo quote; a nil quote with a nil error means unknown symbol
type QuoteGetter func(symbol string) (*finance.Quote, error)

// Source implements domain.PriceSource.
// finance-go does not accept a context; the caller bounds each call.
type Source struct {
	get QuoteGetter
	log zerolog.Logger
}

// NewSource creates a Yahoo price source using quote.Get
func NewSource(log zerolog.Logger) *Source {
	return NewSourceWithGetter(quote.Get, log)
}

// NewSourceWithGetter creates a Yahoo price source with a custom getter
func NewSourceWithGetter(get QuoteGetter, log zerolog.Logger) *Source {
	return &Source{
		get: get,
		log: log.With().Str("client", "yahoo").Logger(),
	}
}

// Name returns the provider name
func (s *Source) Name() string {
	return "yahoo"
}

// Fetch returns the regular market price and previous close of symbol
func (s *Source) Fetch(ctx context.Context, symbol string) (domain.PriceSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.PriceSnapshot{}, err
	}

	q, err := s.get(symbol)
	if err != nil {
		return domain.PriceSnapshot{}, fmt.Errorf("yahoo quote: %w", err)
	}
	if q == nil {
		return domain.PriceSnapshot{}, domain.ErrSymbolNotFound
	}

	s.log.Debug().
		Str("symbol", symbol).
		Float64("price", q.RegularMarketPrice).
		Msg("Quote received")

	return domain.PriceSnapshot{
		Price:         q.RegularMarketPrice,
		PreviousClose: q.RegularMarketPreviousClose,
	}, nil
}
