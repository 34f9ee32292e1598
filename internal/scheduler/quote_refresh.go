package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/simaogato/wealthflow-portfolio/internal/usecase/quotes"
)

// QuoteRefresher refreshes quotes upstream regardless of freshness
type QuoteRefresher interface {
	RefreshQuotes(ctx context.Context, symbols []string) (quotes.Results, error)
}

// QuoteRefreshJob refreshes the quotes of every held symbol.
// A run that starts while the previous one is still going is skipped.
type QuoteRefreshJob struct {
	refresher QuoteRefresher
	timeout   time.Duration
	running   sync.Mutex
	log       zerolog.Logger
}

// QuoteRefreshConfig holds configuration for the quote refresh job
type QuoteRefreshConfig struct {
	Log       zerolog.Logger
	Refresher QuoteRefresher
	Timeout   time.Duration // bound of a whole run, defaults to two minutes
}

// NewQuoteRefreshJob creates a new quote refresh job
func NewQuoteRefreshJob(cfg QuoteRefreshConfig) *QuoteRefreshJob {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &QuoteRefreshJob{
		refresher: cfg.Refresher,
		timeout:   cfg.Timeout,
		log:       cfg.Log.With().Str("job", "quote_refresh").Logger(),
	}
}

// Name returns the job name
func (j *QuoteRefreshJob) Name() string {
	return "quote_refresh"
}

// Run refreshes all held symbols.
// Individual symbol failures are logged; only a failure to list symbols fails the run.
func (j *QuoteRefreshJob) Run() error {
	if !j.running.TryLock() {
		j.log.Warn().Msg("Quote refresh already running")
		return nil
	}
	defer j.running.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	startTime := time.Now()
	results, err := j.refresher.RefreshQuotes(ctx, nil)
	if err != nil {
		return fmt.Errorf("quote refresh: %w", err)
	}

	for symbol, err := range results.Errors() {
		j.log.Warn().Err(err).Str("symbol", symbol).Msg("Symbol not refreshed")
	}

	j.log.Info().
		Int("refreshed", len(results.Quotes())).
		Int("failed", len(results.Errors())).
		Dur("duration", time.Since(startTime)).
		Msg("Quote refresh completed")

	return nil
}
