package rest

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/simaogato/wealthflow-portfolio/internal/domain"
	"github.com/simaogato/wealthflow-portfolio/internal/usecase/quotes"
	"github.com/simaogato/wealthflow-portfolio/internal/usecase/valuation"
)

// Amounts and percentages are rendered as strings with two decimals; stored
// inputs (buy price, quantity, quote price) keep their full precision.

func fixed(d decimal.Decimal) string {
	return d.StringFixed(valuation.DisplayPlaces)
}

func nullable(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

type holdingValuationResponse struct {
	ID               string     `json:"id"`
	Symbol           string     `json:"symbol"`
	Code             string     `json:"code"`
	Name             string     `json:"name"`
	Currency         string     `json:"currency"`
	LotsCount        int        `json:"lots_count"`
	TotalQty         string     `json:"total_qty"`
	InvestedValue    string     `json:"invested_value"`
	WeightedAvgPrice string     `json:"weighted_avg_price"`
	HasQuote         bool       `json:"has_quote"`
	LastPrice        string     `json:"last_price"`
	PreviousClose    *string    `json:"previous_close"`
	QuoteFetchedAt   *time.Time `json:"quote_fetched_at"`
	CurrentValue     string     `json:"current_value"`
	DayGainPerShare  string     `json:"day_gain_per_share"`
	DayGainValue     string     `json:"day_gain_value"`
	DayGainPct       string     `json:"day_gain_pct"`
	TotalGainValue   string     `json:"total_gain_value"`
	TotalGainPct     string     `json:"total_gain_pct"`
}

func toHoldingValuationResponse(v valuation.HoldingValuation) holdingValuationResponse {
	return holdingValuationResponse{
		ID:               v.HoldingID.String(),
		Symbol:           v.Symbol,
		Code:             v.Code,
		Name:             v.Name,
		Currency:         v.Currency,
		LotsCount:        v.LotCount,
		TotalQty:         v.TotalQuantity.String(),
		InvestedValue:    fixed(v.InvestedValue),
		WeightedAvgPrice: fixed(v.WeightedAvgPrice),
		HasQuote:         v.HasQuote,
		LastPrice:        v.LastPrice.String(),
		PreviousClose:    nullable(v.PreviousClose),
		QuoteFetchedAt:   v.QuoteFetchedAt,
		CurrentValue:     fixed(v.CurrentValue),
		DayGainPerShare:  fixed(v.DayGainPerShare),
		DayGainValue:     fixed(v.DayGainValue),
		DayGainPct:       fixed(v.DayGainPct),
		TotalGainValue:   fixed(v.TotalGainValue),
		TotalGainPct:     fixed(v.TotalGainPct),
	}
}

type lotValuationResponse struct {
	ID             string      `json:"id"`
	HoldingID      string      `json:"holding_id"`
	BuyDate        domain.Date `json:"buy_date"`
	BuyPrice       string      `json:"buy_price"`
	Quantity       string      `json:"quantity"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	TotalCost      string      `json:"total_cost"`
	CurrentValue   string      `json:"current_value"`
	TotalGainValue string      `json:"total_gain_value"`
	TotalGainPct   string      `json:"total_gain_pct"`
}

func toLotValuationResponse(v valuation.LotValuation) lotValuationResponse {
	return lotValuationResponse{
		ID:             v.LotID.String(),
		HoldingID:      v.HoldingID.String(),
		BuyDate:        v.BuyDate,
		BuyPrice:       v.BuyPrice.String(),
		Quantity:       v.Quantity.String(),
		CreatedAt:      v.CreatedAt,
		UpdatedAt:      v.UpdatedAt,
		TotalCost:      fixed(v.TotalCost),
		CurrentValue:   fixed(v.CurrentValue),
		TotalGainValue: fixed(v.TotalGainValue),
		TotalGainPct:   fixed(v.TotalGainPct),
	}
}

type summaryResponse struct {
	Currency       string `json:"currency"`
	HoldingsCount  int    `json:"holdings_count"`
	InvestedValue  string `json:"invested_value"`
	CurrentValue   string `json:"current_value"`
	DayGainValue   string `json:"day_gain_value"`
	DayGainPct     string `json:"day_gain_pct"`
	TotalGainValue string `json:"total_gain_value"`
	TotalGainPct   string `json:"total_gain_pct"`
}

func toSummaryResponse(s valuation.PortfolioSummary) summaryResponse {
	return summaryResponse{
		Currency:       s.Currency,
		HoldingsCount:  s.HoldingCount,
		InvestedValue:  fixed(s.InvestedValue),
		CurrentValue:   fixed(s.CurrentValue),
		DayGainValue:   fixed(s.DayGainValue),
		DayGainPct:     fixed(s.DayGainPct),
		TotalGainValue: fixed(s.TotalGainValue),
		TotalGainPct:   fixed(s.TotalGainPct),
	}
}

type holdingResponse struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toHoldingResponse(h *domain.Holding) holdingResponse {
	return holdingResponse{
		ID:        h.ID.String(),
		Symbol:    h.Symbol,
		Code:      h.Code,
		Name:      h.Name,
		Currency:  h.Currency,
		CreatedAt: h.CreatedAt,
		UpdatedAt: h.UpdatedAt,
	}
}

type lotResponse struct {
	ID        string      `json:"id"`
	HoldingID string      `json:"holding_id"`
	BuyDate   domain.Date `json:"buy_date"`
	BuyPrice  string      `json:"buy_price"`
	Quantity  string      `json:"quantity"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func toLotResponse(l *domain.Lot) lotResponse {
	return lotResponse{
		ID:        l.ID.String(),
		HoldingID: l.HoldingID.String(),
		BuyDate:   l.BuyDate,
		BuyPrice:  l.BuyPrice.String(),
		Quantity:  l.Quantity.String(),
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}

type quoteResponse struct {
	Symbol        string    `json:"symbol"`
	Price         string    `json:"price"`
	PreviousClose *string   `json:"previous_close"`
	Change        *string   `json:"change"`
	ChangePercent *string   `json:"change_percent"`
	FetchedAt     time.Time `json:"fetched_at"`
}

func toQuoteResponse(q *domain.Quote) quoteResponse {
	resp := quoteResponse{
		Symbol:        q.Symbol,
		Price:         q.Price.String(),
		PreviousClose: nullable(q.PreviousClose),
		FetchedAt:     q.FetchedAt,
	}
	if q.PreviousClose.Valid {
		change := q.Price.Sub(q.PreviousClose.Decimal)
		pct := change.Div(q.PreviousClose.Decimal).Mul(decimal.NewFromInt(100))
		c, p := fixed(change), fixed(pct)
		resp.Change, resp.ChangePercent = &c, &p
	}
	return resp
}

type quotesResponse struct {
	Quotes []quoteResponse   `json:"quotes"`
	Errors map[string]string `json:"errors,omitempty"`
}

// toQuotesResponse lists resolved quotes in the requested order and failed symbols separately
func toQuotesResponse(order []string, results quotes.Results) quotesResponse {
	resp := quotesResponse{Quotes: make([]quoteResponse, 0, len(results))}
	for _, symbol := range order {
		res, ok := results[symbol]
		if !ok {
			continue
		}
		if res.OK() {
			resp.Quotes = append(resp.Quotes, toQuoteResponse(res.Quote))
			continue
		}
		if resp.Errors == nil {
			resp.Errors = make(map[string]string)
		}
		resp.Errors[symbol] = res.Err.Error()
	}
	return resp
}

func sortedKeys(results quotes.Results) []string {
	keys := make([]string, 0, len(results))
	for symbol := range results {
		keys = append(keys, symbol)
	}
	sort.Strings(keys)
	return keys
}

type refreshResponse struct {
	Refreshed []quoteResponse   `json:"refreshed"`
	Count     int               `json:"count"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// Request bodies

type createHoldingRequest struct {
	Symbol   string `json:"symbol"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

type updateHoldingRequest struct {
	Symbol   *string `json:"symbol"`
	Code     *string `json:"code"`
	Name     *string `json:"name"`
	Currency *string `json:"currency"`
}

func (r updateHoldingRequest) patch() domain.HoldingPatch {
	return domain.HoldingPatch{Code: r.Code, Name: r.Name, Symbol: r.Symbol, Currency: r.Currency}
}

type createLotRequest struct {
	BuyDate  domain.Date     `json:"buy_date"`
	BuyPrice decimal.Decimal `json:"buy_price"`
	Quantity decimal.Decimal `json:"quantity"`
}

type updateLotRequest struct {
	BuyDate  *domain.Date     `json:"buy_date"`
	BuyPrice *decimal.Decimal `json:"buy_price"`
	Quantity *decimal.Decimal `json:"quantity"`
}

func (r updateLotRequest) patch() domain.LotPatch {
	return domain.LotPatch{BuyDate: r.BuyDate, BuyPrice: r.BuyPrice, Quantity: r.Quantity}
}

type refreshRequest struct {
	Symbols []string `json:"symbols"`
}
