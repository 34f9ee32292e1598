// Package rest exposes the portfolio over a JSON HTTP API.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/simaogato/wealthflow-portfolio/internal/domain"
	"github.com/simaogato/wealthflow-portfolio/internal/usecase/portfolio"
	"github.com/simaogato/wealthflow-portfolio/internal/usecase/quotes"
	"github.com/simaogato/wealthflow-portfolio/internal/usecase/valuation"
)

// PortfolioService is what the HTTP layer needs from portfolio.Service
type PortfolioService interface {
	ListPortfolio(ctx context.Context) ([]valuation.HoldingValuation, error)
	Summary(ctx context.Context) ([]valuation.PortfolioSummary, error)
	GetLots(ctx context.Context, holdingID uuid.UUID) ([]valuation.LotValuation, error)
	CreateHolding(ctx context.Context, in portfolio.CreateHoldingInput) (*domain.Holding, error)
	UpdateHolding(ctx context.Context, id uuid.UUID, patch domain.HoldingPatch) (*domain.Holding, error)
	DeleteHolding(ctx context.Context, id uuid.UUID) error
	CreateLot(ctx context.Context, holdingID uuid.UUID, in portfolio.CreateLotInput) (*domain.Lot, error)
	UpdateLot(ctx context.Context, id uuid.UUID, patch domain.LotPatch) (*domain.Lot, error)
	DeleteLot(ctx context.Context, id uuid.UUID) error
	RefreshQuotes(ctx context.Context, symbols []string) (quotes.Results, error)
	GetQuotes(ctx context.Context, symbols []string) (quotes.Results, error)
	GetQuote(ctx context.Context, symbol string) (*domain.Quote, error)
}

// Config holds server configuration
type Config struct {
	Port        int
	Log         zerolog.Logger
	Service     PortfolioService
	CORSOrigins []string
}

// Server represents the HTTP server
type Server struct {
	router  *chi.Mux
	server  *http.Server
	service PortfolioService
	log     zerolog.Logger
	port    int
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		service: cfg.Service,
		log:     cfg.Log.With().Str("component", "http").Logger(),
		port:    cfg.Port,
	}

	s.setupMiddleware(cfg.CORSOrigins)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(origins []string) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/portfolio", func(r chi.Router) {
			r.Get("/", s.handleListPortfolio)
			r.Get("/summary", s.handleSummary)
			r.Get("/{id}/lots", s.handleGetLots)

			r.Post("/holdings", s.handleCreateHolding)
			r.Put("/holdings/{id}", s.handleUpdateHolding)
			r.Delete("/holdings/{id}", s.handleDeleteHolding)
			r.Post("/holdings/{id}/lots", s.handleCreateLot)

			r.Put("/lots/{lotId}", s.handleUpdateLot)
			r.Delete("/lots/{lotId}", s.handleDeleteLot)
		})

		r.Route("/quotes", func(r chi.Router) {
			r.Get("/", s.handleGetQuotes)
			r.Post("/refresh", s.handleRefreshQuotes)
			r.Get("/{symbol}", s.handleGetQuote)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
