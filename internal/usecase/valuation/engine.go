// Package valuation derives quantities, costs and gains from lots and quotes.
// Every function here is pure: same inputs, same output, no I/O.
package valuation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/wealthflow-portfolio/internal/domain"
)

// DisplayPlaces is the number of decimals kept for currency amounts and percentages
const DisplayPlaces = 2

var hundred = decimal.NewFromInt(100)

// HoldingValuation is the valuation of one holding against its quote
type HoldingValuation struct {
	HoldingID uuid.UUID
	Symbol    string
	Code      string
	Name      string
	Currency  string
	LotCount  int

	TotalQuantity    decimal.Decimal
	InvestedValue    decimal.Decimal
	WeightedAvgPrice decimal.Decimal

	HasQuote       bool
	LastPrice      decimal.Decimal // 0 when no quote is available
	PreviousClose  decimal.NullDecimal
	QuoteFetchedAt *time.Time

	CurrentValue    decimal.Decimal
	DayGainPerShare decimal.Decimal
	DayGainValue    decimal.Decimal
	DayGainPct      decimal.Decimal
	TotalGainValue  decimal.Decimal
	TotalGainPct    decimal.Decimal
}

// LotValuation is the valuation of one lot against its holding's quote
type LotValuation struct {
	LotID     uuid.UUID
	HoldingID uuid.UUID
	BuyDate   domain.Date
	BuyPrice  decimal.Decimal
	Quantity  decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time

	TotalCost      decimal.Decimal
	CurrentValue   decimal.Decimal
	TotalGainValue decimal.Decimal
	TotalGainPct   decimal.Decimal
}

// figures holds the unrounded aggregates of a holding
type figures struct {
	quantity      decimal.Decimal
	invested      decimal.Decimal
	price         decimal.Decimal
	current       decimal.Decimal
	dayPerShare   decimal.Decimal
	dayValue      decimal.Decimal
	previousValue decimal.Decimal // quantity x previous close, 0 when unknown
}

func aggregate(lots []*domain.Lot, quote *domain.Quote) figures {
	var f figures
	for _, lot := range lots {
		f.quantity = f.quantity.Add(lot.Quantity)
		f.invested = f.invested.Add(lot.Cost())
	}

	if quote == nil {
		return f
	}

	f.price = quote.Price
	f.current = f.quantity.Mul(quote.Price)
	if quote.PreviousClose.Valid {
		f.dayPerShare = quote.Price.Sub(quote.PreviousClose.Decimal)
		f.dayValue = f.dayPerShare.Mul(f.quantity)
		f.previousValue = f.quantity.Mul(quote.PreviousClose.Decimal)
	}
	return f
}

// Valuate computes the valuation of each holding with the quote of its symbol.
// A holding whose symbol is missing from quotes is valued with a price of 0.
// The result keeps the order of holdings.
func Valuate(holdings []domain.HoldingWithLots, quotes map[string]*domain.Quote) []HoldingValuation {
	out := make([]HoldingValuation, 0, len(holdings))
	for _, hw := range holdings {
		out = append(out, valuateHolding(hw, quotes[hw.Holding.Symbol]))
	}
	return out
}

func valuateHolding(hw domain.HoldingWithLots, quote *domain.Quote) HoldingValuation {
	h := hw.Holding
	f := aggregate(hw.Lots, quote)
	totalGain := f.current.Sub(f.invested)

	v := HoldingValuation{
		HoldingID: h.ID,
		Symbol:    h.Symbol,
		Code:      h.Code,
		Name:      h.Name,
		Currency:  h.Currency,
		LotCount:  len(hw.Lots),

		TotalQuantity:    f.quantity,
		InvestedValue:    round(f.invested),
		WeightedAvgPrice: round(ratio(f.invested, f.quantity)),

		LastPrice: f.price,

		CurrentValue:    round(f.current),
		DayGainPerShare: round(f.dayPerShare),
		DayGainValue:    round(f.dayValue),
		TotalGainValue:  round(totalGain),
		TotalGainPct:    round(percent(totalGain, f.invested)),
	}

	if quote != nil {
		v.HasQuote = true
		v.PreviousClose = quote.PreviousClose
		fetchedAt := quote.FetchedAt
		v.QuoteFetchedAt = &fetchedAt
		if quote.PreviousClose.Valid {
			v.DayGainPct = round(percent(f.dayPerShare, quote.PreviousClose.Decimal))
		}
	}

	return v
}

// ValuateLots computes the valuation of each lot with quote, which may be nil.
// The result keeps the order of lots.
func ValuateLots(lots []*domain.Lot, quote *domain.Quote) []LotValuation {
	price := decimal.Zero
	if quote != nil {
		price = quote.Price
	}

	out := make([]LotValuation, 0, len(lots))
	for _, lot := range lots {
		cost := lot.Cost()
		current := lot.Quantity.Mul(price)
		gain := current.Sub(cost)

		out = append(out, LotValuation{
			LotID:     lot.ID,
			HoldingID: lot.HoldingID,
			BuyDate:   lot.BuyDate,
			BuyPrice:  lot.BuyPrice,
			Quantity:  lot.Quantity,
			CreatedAt: lot.CreatedAt,
			UpdatedAt: lot.UpdatedAt,

			TotalCost:      round(cost),
			CurrentValue:   round(current),
			TotalGainValue: round(gain),
			TotalGainPct:   round(percent(gain, cost)),
		})
	}
	return out
}

// ratio returns a/b, or 0 when b is 0
func ratio(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.Div(b)
}

// percent returns a/b*100, or 0 when b is 0
func percent(a, b decimal.Decimal) decimal.Decimal {
	return ratio(a, b).Mul(hundred)
}

// round rounds half away from zero, so 21.875 -> 21.88 and -21.875 -> -21.88
func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(DisplayPlaces)
}
