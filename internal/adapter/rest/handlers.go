package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/simaogato/wealthflow-portfolio/internal/domain"
	"github.com/simaogato/wealthflow-portfolio/internal/usecase/portfolio"
)

const maxBodyBytes = 1 << 20

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "wealthflow-portfolio",
	})
}

func (s *Server) handleListPortfolio(w http.ResponseWriter, r *http.Request) {
	valuations, err := s.service.ListPortfolio(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := make([]holdingValuationResponse, len(valuations))
	for i, v := range valuations {
		resp[i] = toHoldingValuationResponse(v)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.service.Summary(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := make([]summaryResponse, len(summaries))
	for i, sum := range summaries {
		resp[i] = toSummaryResponse(sum)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetLots(w http.ResponseWriter, r *http.Request) {
	id, ok := s.uuidParam(w, r, "id")
	if !ok {
		return
	}

	lots, err := s.service.GetLots(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := make([]lotValuationResponse, len(lots))
	for i, lot := range lots {
		resp[i] = toLotValuationResponse(lot)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateHolding(w http.ResponseWriter, r *http.Request) {
	var req createHoldingRequest
	if !s.decode(w, r, &req) {
		return
	}

	holding, err := s.service.CreateHolding(r.Context(), portfolio.CreateHoldingInput{
		Symbol:   req.Symbol,
		Code:     req.Code,
		Name:     req.Name,
		Currency: req.Currency,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toHoldingResponse(holding))
}

func (s *Server) handleUpdateHolding(w http.ResponseWriter, r *http.Request) {
	id, ok := s.uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req updateHoldingRequest
	if !s.decode(w, r, &req) {
		return
	}

	holding, err := s.service.UpdateHolding(r.Context(), id, req.patch())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toHoldingResponse(holding))
}

func (s *Server) handleDeleteHolding(w http.ResponseWriter, r *http.Request) {
	id, ok := s.uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := s.service.DeleteHolding(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateLot(w http.ResponseWriter, r *http.Request) {
	holdingID, ok := s.uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req createLotRequest
	if !s.decode(w, r, &req) {
		return
	}

	lot, err := s.service.CreateLot(r.Context(), holdingID, portfolio.CreateLotInput{
		BuyDate:  req.BuyDate,
		BuyPrice: req.BuyPrice,
		Quantity: req.Quantity,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toLotResponse(lot))
}

func (s *Server) handleUpdateLot(w http.ResponseWriter, r *http.Request) {
	id, ok := s.uuidParam(w, r, "lotId")
	if !ok {
		return
	}
	var req updateLotRequest
	if !s.decode(w, r, &req) {
		return
	}

	lot, err := s.service.UpdateLot(r.Context(), id, req.patch())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toLotResponse(lot))
}

func (s *Server) handleDeleteLot(w http.ResponseWriter, r *http.Request) {
	id, ok := s.uuidParam(w, r, "lotId")
	if !ok {
		return
	}

	if err := s.service.DeleteLot(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetQuotes serves GET /api/quotes?symbols=ENGI.PA,AI.PA
func (s *Server) handleGetQuotes(w http.ResponseWriter, r *http.Request) {
	symbols := domain.NormalizeSymbols(strings.Split(r.URL.Query().Get("symbols"), ","))

	results, err := s.service.GetQuotes(r.Context(), symbols)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toQuotesResponse(symbols, results))
}

func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	q, err := s.service.GetQuote(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toQuoteResponse(q))
}

// handleRefreshQuotes serves POST /api/quotes/refresh with an optional {"symbols": [...]} body;
// without symbols every held symbol is refreshed
func (s *Server) handleRefreshQuotes(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.ContentLength != 0 && !s.decodeOptional(w, r, &req) {
		return
	}

	symbols := domain.NormalizeSymbols(req.Symbols)
	results, err := s.service.RefreshQuotes(r.Context(), symbols)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	order := symbols
	if len(order) == 0 {
		order = sortedKeys(results)
	}
	listed := toQuotesResponse(order, results)
	s.writeJSON(w, http.StatusOK, refreshResponse{
		Refreshed: listed.Quotes,
		Count:     len(listed.Quotes),
		Errors:    listed.Errors,
	})
}

// Helpers

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeServiceError maps domain errors to status codes; internal details are only logged
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		requestID := middleware.GetReqID(r.Context())
		s.log.Error().Err(err).Str("path", r.URL.Path).Str("request_id", requestID).Msg("Unhandled error")
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":      "Internal Server Error",
			"request_id": requestID,
		})
	}
}

func (s *Server) uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// decodeOptional accepts an empty body
func (s *Server) decodeOptional(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
