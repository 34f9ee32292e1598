package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/simaogato/wealthflow-portfolio/internal/adapter/repository/memory"
	"github.com/simaogato/wealthflow-portfolio/internal/domain"
	"github.com/simaogato/wealthflow-portfolio/internal/usecase/portfolio"
	"github.com/simaogato/wealthflow-portfolio/internal/usecase/quotes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource serves fixed prices; unknown symbols are not found upstream
type stubSource struct {
	mu     sync.Mutex
	prices map[string]domain.PriceSnapshot
	calls  int
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Fetch(_ context.Context, symbol string) (domain.PriceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	snap, ok := s.prices[symbol]
	if !ok {
		return domain.PriceSnapshot{}, domain.ErrSymbolNotFound
	}
	return snap, nil
}

func (s *stubSource) set(symbol string, price, previousClose float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = domain.PriceSnapshot{Price: price, PreviousClose: previousClose}
}

type testAPI struct {
	handler http.Handler
	source  *stubSource
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.NewStore()
	source := &stubSource{prices: map[string]domain.PriceSnapshot{
		"ENGI.PA": {Price: 130, PreviousClose: 125},
	}}

	cache, err := quotes.NewCache(memory.NewQuoteStore(), store.Holdings(), source, quotes.Config{
		TTL:          time.Minute,
		FetchTimeout: time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)

	svc := portfolio.NewService(store.Holdings(), store.Lots(), cache, zerolog.Nop())
	server := New(Config{Port: 0, Log: zerolog.Nop(), Service: svc})

	return &testAPI{handler: server.Handler(), source: source}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func (a *testAPI) createHolding(t *testing.T, symbol, name string) holdingResponse {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/portfolio/holdings", map[string]string{
		"symbol": symbol, "code": symbol, "name": name,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var h holdingResponse
	decodeBody(t, rec, &h)
	return h
}

func (a *testAPI) createLot(t *testing.T, holdingID, date string, price, qty interface{}) lotResponse {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/portfolio/holdings/"+holdingID+"/lots", map[string]interface{}{
		"buy_date": date, "buy_price": price, "quantity": qty,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var l lotResponse
	decodeBody(t, rec, &l)
	return l
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestPortfolioValuation(t *testing.T) {
	api := newTestAPI(t)
	engie := api.createHolding(t, "engi.pa", "Engie")
	api.createLot(t, engie.ID, "2024-01-10", 100, 10)
	api.createLot(t, engie.ID, "2024-06-10", "120", "5")
	api.createHolding(t, "BAD", "Broken")

	rec := api.do(t, http.MethodGet, "/api/portfolio", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []holdingValuationResponse
	decodeBody(t, rec, &list)
	require.Len(t, list, 2)

	broken := list[0]
	assert.Equal(t, "Broken", broken.Name)
	assert.False(t, broken.HasQuote)
	assert.Equal(t, "0.00", broken.CurrentValue)

	v := list[1]
	assert.Equal(t, "ENGI.PA", v.Symbol)
	assert.Equal(t, 2, v.LotsCount)
	assert.Equal(t, "1600.00", v.InvestedValue)
	assert.Equal(t, "106.67", v.WeightedAvgPrice)
	assert.Equal(t, "1950.00", v.CurrentValue)
	assert.Equal(t, "350.00", v.TotalGainValue)
	assert.Equal(t, "21.88", v.TotalGainPct)
	assert.Equal(t, "75.00", v.DayGainValue)
	assert.Equal(t, "4.00", v.DayGainPct)
	assert.True(t, v.HasQuote)
	require.NotNil(t, v.PreviousClose)
	assert.Equal(t, "125", *v.PreviousClose)
}

func TestGetLots(t *testing.T) {
	api := newTestAPI(t)
	engie := api.createHolding(t, "ENGI.PA", "Engie")
	first := api.createLot(t, engie.ID, "2024-01-10", 100, 10)
	second := api.createLot(t, engie.ID, "2024-06-10", 120, 5)

	rec := api.do(t, http.MethodGet, "/api/portfolio/"+engie.ID+"/lots", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var lots []lotValuationResponse
	decodeBody(t, rec, &lots)
	require.Len(t, lots, 2)
	assert.Equal(t, second.ID, lots[0].ID)
	assert.Equal(t, first.ID, lots[1].ID)
	assert.Equal(t, "2024-06-10", lots[0].BuyDate.String())
	assert.Equal(t, "8.33", lots[0].TotalGainPct)
	assert.Equal(t, "30.00", lots[1].TotalGainPct)
}

func TestHoldingLifecycle(t *testing.T) {
	api := newTestAPI(t)
	h := api.createHolding(t, "ENGI.PA", "Engie")
	assert.Equal(t, "EUR", h.Currency)
	lot := api.createLot(t, h.ID, "2024-01-10", 100, 10)

	rec := api.do(t, http.MethodPut, "/api/portfolio/holdings/"+h.ID, map[string]string{"name": "Engie SA"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated holdingResponse
	decodeBody(t, rec, &updated)
	assert.Equal(t, "Engie SA", updated.Name)
	assert.Equal(t, "ENGI.PA", updated.Symbol)

	rec = api.do(t, http.MethodPut, "/api/portfolio/lots/"+lot.ID, map[string]string{"quantity": "12.5"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updatedLot lotResponse
	decodeBody(t, rec, &updatedLot)
	assert.Equal(t, "12.5", updatedLot.Quantity)
	assert.Equal(t, "100", updatedLot.BuyPrice)

	rec = api.do(t, http.MethodDelete, "/api/portfolio/holdings/"+h.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/portfolio/"+h.ID+"/lots", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = api.do(t, http.MethodDelete, "/api/portfolio/lots/"+lot.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "lots are deleted with their holding")
}

func TestValidationErrors(t *testing.T) {
	api := newTestAPI(t)
	h := api.createHolding(t, "ENGI.PA", "Engie")

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"Missing name", http.MethodPost, "/api/portfolio/holdings", map[string]string{"symbol": "A", "code": "A"}, http.StatusBadRequest},
		{"Unknown field", http.MethodPost, "/api/portfolio/holdings", map[string]string{"symbol": "A", "code": "A", "name": "A", "colour": "red"}, http.StatusBadRequest},
		{"Bad holding id", http.MethodGet, "/api/portfolio/not-a-uuid/lots", nil, http.StatusBadRequest},
		{"Empty patch", http.MethodPut, "/api/portfolio/holdings/" + h.ID, map[string]string{}, http.StatusBadRequest},
		{"Bad buy date", http.MethodPost, "/api/portfolio/holdings/" + h.ID + "/lots", map[string]interface{}{"buy_date": "10/01/2024", "buy_price": 1, "quantity": 1}, http.StatusBadRequest},
		{"Symbol too long", http.MethodPost, "/api/portfolio/holdings", map[string]string{"symbol": strings.Repeat("X", 40), "code": "X", "name": "X"}, http.StatusBadRequest},
		{"Buy price beyond eight decimals", http.MethodPost, "/api/portfolio/holdings/" + h.ID + "/lots", map[string]interface{}{"buy_date": "2024-01-10", "buy_price": "1.123456789", "quantity": 1}, http.StatusBadRequest},
		{"Quantity rounding to zero", http.MethodPost, "/api/portfolio/holdings/" + h.ID + "/lots", map[string]interface{}{"buy_date": "2024-01-10", "buy_price": 1, "quantity": "0.000000004"}, http.StatusBadRequest},
		{"Zero quantity", http.MethodPost, "/api/portfolio/holdings/" + h.ID + "/lots", map[string]interface{}{"buy_date": "2024-01-10", "buy_price": 1, "quantity": 0}, http.StatusBadRequest},
		{"Unknown holding", http.MethodPost, "/api/portfolio/holdings/8f7a64c2-3b8c-4f0e-9a7d-1d2f3e4a5b6c/lots", map[string]interface{}{"buy_date": "2024-01-10", "buy_price": 1, "quantity": 1}, http.StatusNotFound},
		{"Quotes without symbols", http.MethodGet, "/api/quotes?symbols=,", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestQuotesEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.source.set("AI.PA", 180.5, 0)

	rec := api.do(t, http.MethodGet, "/api/quotes?symbols=engi.pa,AI.PA,NOPE,ENGI.PA", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var batch quotesResponse
	decodeBody(t, rec, &batch)
	require.Len(t, batch.Quotes, 2)
	assert.Equal(t, "ENGI.PA", batch.Quotes[0].Symbol)
	assert.Equal(t, "AI.PA", batch.Quotes[1].Symbol)
	require.NotNil(t, batch.Quotes[0].ChangePercent)
	assert.Equal(t, "4.00", *batch.Quotes[0].ChangePercent)
	assert.Nil(t, batch.Quotes[1].PreviousClose)
	assert.Contains(t, batch.Errors, "NOPE")

	rec = api.do(t, http.MethodGet, "/api/quotes/ai.pa", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var single quoteResponse
	decodeBody(t, rec, &single)
	assert.Equal(t, "180.5", single.Price)

	rec = api.do(t, http.MethodGet, "/api/quotes/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshQuotes(t *testing.T) {
	api := newTestAPI(t)
	api.createHolding(t, "ENGI.PA", "Engie")
	api.createHolding(t, "BAD", "Broken")

	// warm the cache, then refresh everything held regardless of freshness
	api.do(t, http.MethodGet, "/api/quotes?symbols=ENGI.PA", nil)
	api.source.set("ENGI.PA", 131, 125)

	req := httptest.NewRequest(http.MethodPost, "/api/quotes/refresh", nil)
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp refreshResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Refreshed, 1)
	assert.Equal(t, "131", resp.Refreshed[0].Price)
	assert.Contains(t, resp.Errors, "BAD")

	rec = api.do(t, http.MethodPost, "/api/quotes/refresh", map[string][]string{"symbols": {"engi.pa"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var targeted refreshResponse
	decodeBody(t, rec, &targeted)
	assert.Equal(t, 1, targeted.Count)
	assert.Empty(t, targeted.Errors)
}

func TestSummary(t *testing.T) {
	api := newTestAPI(t)
	engie := api.createHolding(t, "ENGI.PA", "Engie")
	api.createLot(t, engie.ID, "2024-01-10", 100, 10)
	api.createLot(t, engie.ID, "2024-06-10", 120, 5)

	rec := api.do(t, http.MethodGet, "/api/portfolio/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summaries []summaryResponse
	decodeBody(t, rec, &summaries)
	require.Len(t, summaries, 1)
	assert.Equal(t, "EUR", summaries[0].Currency)
	assert.Equal(t, "1950.00", summaries[0].CurrentValue)
	assert.Equal(t, "4.00", summaries[0].DayGainPct)
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/portfolio", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()

	api.handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
