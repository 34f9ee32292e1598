package valuation

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/simaogato/wealthflow-portfolio/internal/domain"
)

// PortfolioSummary represents the totals of all holdings quoted in one currency
type PortfolioSummary struct {
	Currency       string
	HoldingCount   int
	InvestedValue  decimal.Decimal
	CurrentValue   decimal.Decimal
	DayGainValue   decimal.Decimal
	DayGainPct     decimal.Decimal
	TotalGainValue decimal.Decimal
	TotalGainPct   decimal.Decimal
}

type summaryTotals struct {
	count    int
	invested decimal.Decimal
	current  decimal.Decimal
	dayValue decimal.Decimal
	previous decimal.Decimal
}

// Summarize totals the holdings per currency.
// Logic:
//   - Invested / Current: sums over every holding of the currency
//   - Day gain %: day gain over the previous-close value of holdings whose previous close is known
//   - Total gain %: (Current - Invested) / Invested
//
// Amounts are accumulated unrounded and rounded once at the end.
// Summaries are sorted by currency code.
func Summarize(holdings []domain.HoldingWithLots, quotes map[string]*domain.Quote) []PortfolioSummary {
	byCurrency := make(map[string]*summaryTotals)
	for _, hw := range holdings {
		f := aggregate(hw.Lots, quotes[hw.Holding.Symbol])

		t, ok := byCurrency[hw.Holding.Currency]
		if !ok {
			t = &summaryTotals{}
			byCurrency[hw.Holding.Currency] = t
		}
		t.count++
		t.invested = t.invested.Add(f.invested)
		t.current = t.current.Add(f.current)
		t.dayValue = t.dayValue.Add(f.dayValue)
		t.previous = t.previous.Add(f.previousValue)
	}

	out := make([]PortfolioSummary, 0, len(byCurrency))
	for currency, t := range byCurrency {
		totalGain := t.current.Sub(t.invested)
		out = append(out, PortfolioSummary{
			Currency:       currency,
			HoldingCount:   t.count,
			InvestedValue:  round(t.invested),
			CurrentValue:   round(t.current),
			DayGainValue:   round(t.dayValue),
			DayGainPct:     round(percent(t.dayValue, t.previous)),
			TotalGainValue: round(totalGain),
			TotalGainPct:   round(percent(totalGain, t.invested)),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}
