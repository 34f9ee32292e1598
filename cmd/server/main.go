package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	grpclib "google.golang.org/grpc"

	grpcadapter "github.com/simaogato/wealthflow-portfolio/internal/adapter/grpc"
	"github.com/simaogato/wealthflow-portfolio/internal/adapter/repository/memory"
	"github.com/simaogato/wealthflow-portfolio/internal/adapter/repository/postgres"
	"github.com/simaogato/wealthflow-portfolio/internal/adapter/repository/sqlite"
	"github.com/simaogato/wealthflow-portfolio/internal/adapter/rest"
	"github.com/simaogato/wealthflow-portfolio/internal/adapter/upstream/finnhub"
	"github.com/simaogato/wealthflow-portfolio/internal/adapter/upstream/yahoo"
	"github.com/simaogato/wealthflow-portfolio/internal/config"
	"github.com/simaogato/wealthflow-portfolio/internal/domain"
	"github.com/simaogato/wealthflow-portfolio/internal/scheduler"
	"github.com/simaogato/wealthflow-portfolio/internal/usecase/portfolio"
	"github.com/simaogato/wealthflow-portfolio/internal/usecase/quotes"
	"github.com/simaogato/wealthflow-portfolio/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("store", cfg.StoreDriver).
		Str("quote_store", cfg.QuoteStore).
		Str("quote_provider", cfg.QuoteProvider).
		Dur("quote_ttl", cfg.QuoteTTL).
		Msg("Starting wealthflow portfolio service")

	ctx := context.Background()

	// 2. Setup Database (only when a store needs it)
	var db *postgres.DB
	if cfg.UsesPostgres() {
		db, err = postgres.NewDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		if err := db.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to create schema")
		}
	}

	// 3. Initialize Repositories
	var (
		holdingRepo domain.HoldingRepository
		lotRepo     domain.LotRepository
		quoteRepo   domain.QuoteRepository
	)

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		holdingRepo = postgres.NewHoldingRepository(db)
		lotRepo = postgres.NewLotRepository(db)
	default:
		store := memory.NewStore()
		holdingRepo = store.Holdings()
		lotRepo = store.Lots()
		log.Warn().Msg("Holdings are kept in memory and are lost on restart")
	}

	switch cfg.QuoteStore {
	case config.DriverPostgres:
		quoteRepo = postgres.NewQuoteRepository(db)
	case config.DriverSQLite:
		quoteStore, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.SQLitePath).Msg("Failed to open quote store")
		}
		defer quoteStore.Close()
		log.Info().Str("path", quoteStore.Path()).Msg("Opened sqlite quote store")
		quoteRepo = quoteStore
	default:
		quoteRepo = memory.NewQuoteStore()
	}

	// 4. Price source
	source, err := newPriceSource(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create price source")
	}

	// 5. Initialize Services (Use Cases)
	cache, err := quotes.NewCache(quoteRepo, holdingRepo, source, quotes.Config{
		TTL:            cfg.QuoteTTL,
		FetchTimeout:   cfg.QuoteFetchTimeout,
		MaxConcurrency: cfg.QuoteFetchConcurrency,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create quote cache")
	}
	portfolioService := portfolio.NewService(holdingRepo, lotRepo, cache, log)

	// 6. Background quote refresh
	sched := scheduler.New(log)
	if cfg.QuoteRefreshSchedule != "" {
		job := scheduler.NewQuoteRefreshJob(scheduler.QuoteRefreshConfig{
			Log:       log,
			Refresher: portfolioService,
		})
		if err := sched.AddJob(cfg.QuoteRefreshSchedule, job); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule quote refresh")
		}
	}
	sched.Start()

	// 7. Start HTTP Server
	httpServer := rest.New(rest.Config{
		Port:        cfg.HTTPPort,
		Log:         log,
		Service:     portfolioService,
		CORSOrigins: cfg.CORSOrigins,
	})
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to serve HTTP server")
		}
	}()

	// 8. Start gRPC Server
	var grpcServer *grpclib.Server
	if cfg.GRPCPort > 0 {
		grpcServer = grpcadapter.NewGRPCServer(grpcadapter.NewServer(portfolioService, log), cfg.APIToken)

		addr := fmt.Sprintf(":%d", cfg.GRPCPort)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", addr).Msg("Failed to listen")
		}

		go func() {
			log.Info().Str("addr", addr).Msg("gRPC server listening")
			if err := grpcServer.Serve(lis); err != nil {
				log.Fatal().Err(err).Msg("Failed to serve gRPC server")
			}
		}()
	}

	// Graceful shutdown
	waitForShutdown(log, httpServer, grpcServer, sched)
}

func newPriceSource(cfg *config.Config, log zerolog.Logger) (domain.PriceSource, error) {
	switch cfg.QuoteProvider {
	case config.ProviderYahoo:
		return yahoo.NewSource(log), nil
	default:
		client, err := finnhub.NewClient(finnhub.Config{
			APIKey: cfg.FinnhubAPIKey,
			Log:    log,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the servers
func waitForShutdown(log zerolog.Logger, httpServer *rest.Server, grpcServer *grpclib.Server, sched *scheduler.Scheduler) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully")

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	if grpcServer != nil {
		grpcServer.GracefulStop()
		log.Info().Msg("gRPC server stopped")
	}
}
