package domain

import (
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"
)

// Field limits of the holdings table
const (
	MaxSymbolLength   = 32
	MaxCodeLength     = 20
	MaxNameLength     = 200
	MaxCurrencyLength = 5
	DefaultCurrency   = "EUR"
)

// Holding represents a tracked position in one symbol.
// A Holding exclusively owns its Lots; deleting it removes all of them.
type Holding struct {
	ID        uuid.UUID
	Symbol    string // Ticker used to resolve the quote of every lot (e.g. ENGI.PA)
	Code      string
	Name      string
	Currency  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Normalize puts symbol and currency in canonical form and trims text fields
func (h *Holding) Normalize() {
	h.Symbol = NormalizeSymbol(h.Symbol)
	h.Code = strings.TrimSpace(h.Code)
	h.Name = strings.TrimSpace(h.Name)
	h.Currency = strings.ToUpper(strings.TrimSpace(h.Currency))
}

// Validate ensures the holding adheres to domain rules
// Returns an error if validation fails
func (h *Holding) Validate() error {
	if h.Symbol == "" {
		return invalid("symbol", "cannot be empty")
	}
	if len(h.Symbol) > MaxSymbolLength {
		return invalid("symbol", "is too long")
	}
	if h.Code == "" {
		return invalid("code", "cannot be empty")
	}
	if len(h.Code) > MaxCodeLength {
		return invalid("code", "is too long")
	}
	if h.Name == "" {
		return invalid("name", "cannot be empty")
	}
	if len(h.Name) > MaxNameLength {
		return invalid("name", "is too long")
	}
	if h.Currency == "" {
		return invalid("currency", "cannot be empty")
	}
	if len(h.Currency) > MaxCurrencyLength || money.GetCurrency(h.Currency) == nil {
		return invalid("currency", h.Currency+" is not a known currency code")
	}
	return nil
}

// HoldingWithLots is a holding together with its lots, newest purchase first
type HoldingWithLots struct {
	Holding *Holding
	Lots    []*Lot
}

// HoldingPatch is a partial update of a holding; nil members are left untouched
type HoldingPatch struct {
	Code     *string
	Name     *string
	Symbol   *string
	Currency *string
}

// IsEmpty reports whether the patch carries no field
func (p HoldingPatch) IsEmpty() bool {
	return p.Code == nil && p.Name == nil && p.Symbol == nil && p.Currency == nil
}

// Apply copies the present fields onto h, normalizes and validates the result
func (p HoldingPatch) Apply(h *Holding) error {
	if p.IsEmpty() {
		return invalid("patch", "has no fields")
	}
	if p.Code != nil {
		h.Code = *p.Code
	}
	if p.Name != nil {
		h.Name = *p.Name
	}
	if p.Symbol != nil {
		h.Symbol = *p.Symbol
	}
	if p.Currency != nil {
		h.Currency = *p.Currency
	}
	h.Normalize()
	return h.Validate()
}
