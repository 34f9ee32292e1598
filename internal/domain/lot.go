package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Limits of the NUMERIC(20, 8) lot columns
const (
	MaxLotDecimalPlaces = 8
	MaxLotIntegerDigits = 12
)

var lotValueBound = decimal.New(1, MaxLotIntegerDigits)

// Lot represents a single purchase contributing to a holding.
// A Lot keeps the same HoldingID for its entire lifetime.
type Lot struct {
	ID        uuid.UUID
	HoldingID uuid.UUID
	BuyDate   Date
	BuyPrice  decimal.Decimal
	Quantity  decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate ensures the lot adheres to domain rules
// Returns an error if validation fails
func (l *Lot) Validate() error {
	if l.HoldingID == uuid.Nil {
		return invalid("holding_id", "lot must belong to a holding")
	}
	if l.BuyDate.IsZero() {
		return invalid("buy_date", "cannot be empty")
	}
	if !l.BuyPrice.IsPositive() {
		return invalid("buy_price", "must be positive")
	}
	if err := checkLotAmount("buy_price", l.BuyPrice); err != nil {
		return err
	}
	if !l.Quantity.IsPositive() {
		return invalid("quantity", "must be positive")
	}
	return checkLotAmount("quantity", l.Quantity)
}

// checkLotAmount rejects values the lot columns would round or overflow
func checkLotAmount(field string, d decimal.Decimal) error {
	if !d.Truncate(MaxLotDecimalPlaces).Equal(d) {
		return invalid(field, fmt.Sprintf("has more than %d decimal places", MaxLotDecimalPlaces))
	}
	if d.GreaterThanOrEqual(lotValueBound) {
		return invalid(field, fmt.Sprintf("has more than %d integer digits", MaxLotIntegerDigits))
	}
	return nil
}

// Cost returns quantity x buy price, unrounded
func (l *Lot) Cost() decimal.Decimal {
	return l.Quantity.Mul(l.BuyPrice)
}

// LotPatch is a partial update of a lot; nil members are left untouched.
// The parent holding cannot be patched.
type LotPatch struct {
	BuyDate  *Date
	BuyPrice *decimal.Decimal
	Quantity *decimal.Decimal
}

// IsEmpty reports whether the patch carries no field
func (p LotPatch) IsEmpty() bool {
	return p.BuyDate == nil && p.BuyPrice == nil && p.Quantity == nil
}

// Apply copies the present fields onto l and validates the result
func (p LotPatch) Apply(l *Lot) error {
	if p.IsEmpty() {
		return invalid("patch", "has no fields")
	}
	if p.BuyDate != nil {
		l.BuyDate = *p.BuyDate
	}
	if p.BuyPrice != nil {
		l.BuyPrice = *p.BuyPrice
	}
	if p.Quantity != nil {
		l.Quantity = *p.Quantity
	}
	return l.Validate()
}
