package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// PriceSnapshot is what an upstream price source reports for one symbol.
// PreviousClose is zero when the source does not know it.
type PriceSnapshot struct {
	Price         float64
	PreviousClose float64
}

// Quote represents the last known price of a symbol in the domain layer.
// A Quote is immutable; a newer one for the same symbol supersedes it.
type Quote struct {
	Symbol        string
	Price         decimal.Decimal
	PreviousClose decimal.NullDecimal // Valid only when the previous close is known and positive
	FetchedAt     time.Time
}

// NewQuote builds a Quote from an upstream snapshot.
// A non-positive or non-finite price yields ErrInvalidQuote. A non-positive or
// non-finite previous close is recorded as unknown.
func NewQuote(symbol string, snap PriceSnapshot, fetchedAt time.Time) (*Quote, error) {
	if !isPositiveFinite(snap.Price) {
		return nil, fmt.Errorf("%w: price %v for %s", ErrInvalidQuote, snap.Price, symbol)
	}

	q := &Quote{
		Symbol:    NormalizeSymbol(symbol),
		Price:     decimal.NewFromFloat(snap.Price),
		FetchedAt: fetchedAt,
	}
	if isPositiveFinite(snap.PreviousClose) {
		q.PreviousClose = decimal.NewNullDecimal(decimal.NewFromFloat(snap.PreviousClose))
	}

	return q, nil
}

// Validate ensures the quote can be stored and used for valuation
func (q *Quote) Validate() error {
	if q.Symbol == "" {
		return fmt.Errorf("%w: missing symbol", ErrInvalidQuote)
	}
	if !q.Price.IsPositive() {
		return fmt.Errorf("%w: price %s for %s", ErrInvalidQuote, q.Price, q.Symbol)
	}
	if q.FetchedAt.IsZero() {
		return fmt.Errorf("%w: missing fetch time for %s", ErrInvalidQuote, q.Symbol)
	}
	return nil
}

// IsFresh reports whether the quote is younger than ttl at instant now
func (q *Quote) IsFresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(q.FetchedAt) < ttl
}

// Supersedes reports whether q should replace stored (last write wins by FetchedAt)
func (q *Quote) Supersedes(stored *Quote) bool {
	if stored == nil {
		return true
	}
	return !q.FetchedAt.Before(stored.FetchedAt)
}

func isPositiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
