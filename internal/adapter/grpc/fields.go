package grpc

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simaogato/wealthflow-portfolio/internal/domain"
	"github.com/simaogato/wealthflow-portfolio/internal/usecase/quotes"
	"github.com/simaogato/wealthflow-portfolio/internal/usecase/valuation"
)

// Field maps use the JSON API names. Money and percentages are two-decimal
// strings, stored inputs keep full precision, times are RFC 3339.

func fixed(d decimal.Decimal) string {
	return d.StringFixed(valuation.DisplayPlaces)
}

func nullable(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func holdingValuationFields(v valuation.HoldingValuation) map[string]interface{} {
	var fetchedAt interface{}
	if v.QuoteFetchedAt != nil {
		fetchedAt = timestamp(*v.QuoteFetchedAt)
	}

	return map[string]interface{}{
		"id":                 v.HoldingID.String(),
		"symbol":             v.Symbol,
		"code":               v.Code,
		"name":               v.Name,
		"currency":           v.Currency,
		"lots_count":         v.LotCount,
		"total_qty":          v.TotalQuantity.String(),
		"invested_value":     fixed(v.InvestedValue),
		"weighted_avg_price": fixed(v.WeightedAvgPrice),
		"has_quote":          v.HasQuote,
		"last_price":         v.LastPrice.String(),
		"previous_close":     nullable(v.PreviousClose),
		"quote_fetched_at":   fetchedAt,
		"current_value":      fixed(v.CurrentValue),
		"day_gain_per_share": fixed(v.DayGainPerShare),
		"day_gain_value":     fixed(v.DayGainValue),
		"day_gain_pct":       fixed(v.DayGainPct),
		"total_gain_value":   fixed(v.TotalGainValue),
		"total_gain_pct":     fixed(v.TotalGainPct),
	}
}

func lotValuationFields(v valuation.LotValuation) map[string]interface{} {
	return map[string]interface{}{
		"id":               v.LotID.String(),
		"holding_id":       v.HoldingID.String(),
		"buy_date":         v.BuyDate.String(),
		"buy_price":        v.BuyPrice.String(),
		"quantity":         v.Quantity.String(),
		"total_cost":       fixed(v.TotalCost),
		"current_value":    fixed(v.CurrentValue),
		"total_gain_value": fixed(v.TotalGainValue),
		"total_gain_pct":   fixed(v.TotalGainPct),
	}
}

func summaryFields(s valuation.PortfolioSummary) map[string]interface{} {
	return map[string]interface{}{
		"currency":         s.Currency,
		"holdings_count":   s.HoldingCount,
		"invested_value":   fixed(s.InvestedValue),
		"current_value":    fixed(s.CurrentValue),
		"day_gain_value":   fixed(s.DayGainValue),
		"day_gain_pct":     fixed(s.DayGainPct),
		"total_gain_value": fixed(s.TotalGainValue),
		"total_gain_pct":   fixed(s.TotalGainPct),
	}
}

func quoteFields(q *domain.Quote) map[string]interface{} {
	return map[string]interface{}{
		"symbol":         q.Symbol,
		"price":          q.Price.String(),
		"previous_close": nullable(q.PreviousClose),
		"fetched_at":     timestamp(q.FetchedAt),
	}
}

// refreshFields lists refreshed quotes by symbol and reports failures separately
func refreshFields(results quotes.Results) map[string]interface{} {
	symbols := make([]string, 0, len(results))
	for symbol := range results {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	refreshed := make([]interface{}, 0, len(symbols))
	failures := make(map[string]interface{})
	for _, symbol := range symbols {
		res := results[symbol]
		if res.OK() {
			refreshed = append(refreshed, quoteFields(res.Quote))
			continue
		}
		failures[symbol] = res.Err.Error()
	}

	return map[string]interface{}{
		"refreshed": refreshed,
		"count":     len(refreshed),
		"errors":    failures,
	}
}
