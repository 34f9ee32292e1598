// Package quotes serves market quotes from the quote store and refills it from
// the upstream price source when a quote is missing or older than the TTL.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/simaogato/wealthflow-portfolio/internal/domain"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Defaults used when the configuration leaves a value unset
const (
	DefaultTTL            = 60 * time.Second
	DefaultFetchTimeout   = 10 * time.Second
	DefaultMaxConcurrency = 8
)

// Config tunes the cache
type Config struct {
	TTL            time.Duration // maximum age of a fresh quote, must be positive
	FetchTimeout   time.Duration // bound of one upstream fetch
	MaxConcurrency int           // parallel upstream fetches per call
	Clock          func() time.Time
}

// Result is the outcome of resolving one symbol: exactly one of Quote and Err is set
type Result struct {
	Quote *domain.Quote
	Err   error
}

// OK reports whether a quote is available
func (r Result) OK() bool {
	return r.Quote != nil
}

// Results maps every requested (normalized) symbol to its Result
type Results map[string]Result

// Quotes returns only the resolved quotes
func (r Results) Quotes() map[string]*domain.Quote {
	out := make(map[string]*domain.Quote, len(r))
	for symbol, res := range r {
		if res.OK() {
			out[symbol] = res.Quote
		}
	}
	return out
}

// Errors returns only the failed symbols
func (r Results) Errors() map[string]error {
	out := make(map[string]error)
	for symbol, res := range r {
		if res.Err != nil {
			out[symbol] = res.Err
		}
	}
	return out
}

// Cache resolves symbols to quotes
type Cache struct {
	QuoteRepo   domain.QuoteRepository
	HoldingRepo domain.HoldingRepository
	Source      domain.PriceSource

	cfg      Config
	inflight singleflight.Group
	log      zerolog.Logger
}

// NewCache creates a new Cache instance.
// A non-positive TTL is a configuration error.
func NewCache(
	quoteRepo domain.QuoteRepository,
	holdingRepo domain.HoldingRepository,
	source domain.PriceSource,
	cfg Config,
	log zerolog.Logger,
) (*Cache, error) {
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("%w: quote TTL must be positive, got %s", domain.ErrConfiguration, cfg.TTL)
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Cache{
		QuoteRepo:   quoteRepo,
		HoldingRepo: holdingRepo,
		Source:      source,
		cfg:         cfg,
		log:         log.With().Str("component", "quote_cache").Str("source", source.Name()).Logger(),
	}, nil
}

// Resolve returns a Result for every distinct normalized symbol.
// Fresh stored quotes are served as is; every other symbol is fetched upstream
// once, concurrently, and stored before being returned. One symbol failing
// never affects the others.
func (c *Cache) Resolve(ctx context.Context, symbols []string) Results {
	wanted := domain.NormalizeSymbols(symbols)
	results := make(Results, len(wanted))
	if len(wanted) == 0 {
		return results
	}

	stored, err := c.QuoteRepo.GetBySymbols(ctx, wanted)
	if err != nil {
		// Treat everything as a miss; the mapping must stay complete.
		c.log.Warn().Err(err).Strs("symbols", wanted).Msg("Failed to read quote store")
		stored = nil
	}

	now := c.cfg.Clock()
	misses := make([]string, 0, len(wanted))
	for _, symbol := range wanted {
		if q, ok := stored[symbol]; ok && q.IsFresh(now, c.cfg.TTL) {
			results[symbol] = Result{Quote: q}
			continue
		}
		misses = append(misses, symbol)
	}

	c.log.Debug().
		Int("requested", len(wanted)).
		Int("hits", len(wanted)-len(misses)).
		Int("misses", len(misses)).
		Msg("Resolving quotes")

	for symbol, res := range c.fetchAll(ctx, misses, c.fetchShared) {
		results[symbol] = res
	}
	return results
}

// ForceRefresh fetches every symbol upstream regardless of freshness and stores
// the results. With no symbols it refreshes the distinct symbols of all holdings.
// The error is reserved for failing to list those symbols; per-symbol failures
// are inlined in Results.
func (c *Cache) ForceRefresh(ctx context.Context, symbols []string) (Results, error) {
	wanted := domain.NormalizeSymbols(symbols)
	if len(wanted) == 0 {
		all, err := c.HoldingRepo.ListSymbols(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list holding symbols: %w", err)
		}
		wanted = domain.NormalizeSymbols(all)
	}

	results := c.fetchAll(ctx, wanted, c.fetchAndStore)

	c.log.Info().
		Int("refreshed", len(results.Quotes())).
		Int("failed", len(results.Errors())).
		Msg("Forced quote refresh")

	return results, nil
}

// GetSingle resolves exactly one symbol.
// When no quote is available the error wraps both domain.ErrNotFound and the FetchError.
func (c *Cache) GetSingle(ctx context.Context, symbol string) (*domain.Quote, error) {
	normalized := domain.NormalizeSymbol(symbol)
	if normalized == "" {
		return nil, &domain.ValidationError{Field: "symbol", Reason: "cannot be empty"}
	}

	res := c.Resolve(ctx, []string{normalized})[normalized]
	if !res.OK() {
		return nil, fmt.Errorf("%w: %w", domain.ErrNotFound, res.Err)
	}
	return res.Quote, nil
}

type fetchFunc func(ctx context.Context, symbol string) (*domain.Quote, error)

// fetchAll runs fetch for every symbol concurrently. Each goroutine writes only
// its own slot, so no lock is needed around the results.
func (c *Cache) fetchAll(ctx context.Context, symbols []string, fetch fetchFunc) Results {
	slots := make([]Result, len(symbols))

	var g errgroup.Group
	g.SetLimit(c.cfg.MaxConcurrency)
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			q, err := fetch(ctx, symbol)
			if err != nil {
				c.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote fetch failed")
				slots[i] = Result{Err: asFetchError(symbol, err)}
				return nil
			}
			slots[i] = Result{Quote: q}
			return nil
		})
	}
	_ = g.Wait() // goroutines never return an error

	results := make(Results, len(symbols))
	for i, symbol := range symbols {
		results[symbol] = slots[i]
	}
	return results
}

// fetchShared collapses concurrent fetches of the same symbol across Resolve
// calls into one upstream request. The shared request is detached from the
// caller's cancellation; each caller stops waiting on its own context.
func (c *Cache) fetchShared(ctx context.Context, symbol string) (*domain.Quote, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.inflight.DoChan(symbol, func() (interface{}, error) {
		return c.fetchAndStore(detached, symbol)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Quote), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fetchAndStore fetches one symbol, validates the price and upserts the quote.
// A store failure is logged and the fetched quote is still returned.
func (c *Cache) fetchAndStore(ctx context.Context, symbol string) (*domain.Quote, error) {
	snap, err := c.fetchWithDeadline(ctx, symbol)
	if err != nil {
		return nil, err
	}

	q, err := domain.NewQuote(symbol, snap, c.cfg.Clock())
	if err != nil {
		return nil, err
	}

	if err := c.QuoteRepo.Upsert(ctx, q); err != nil {
		c.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to store fetched quote")
	}

	return q, nil
}

type fetchOutcome struct {
	snap domain.PriceSnapshot
	err  error
}

// fetchWithDeadline bounds one upstream call by FetchTimeout even when the
// source ignores its context.
func (c *Cache) fetchWithDeadline(ctx context.Context, symbol string) (domain.PriceSnapshot, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	done := make(chan fetchOutcome, 1)
	go func() {
		snap, err := c.Source.Fetch(fetchCtx, symbol)
		done <- fetchOutcome{snap: snap, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(fetchCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return domain.PriceSnapshot{}, fmt.Errorf("timed out after %s: %w", c.cfg.FetchTimeout, out.err)
		}
		return out.snap, out.err
	case <-fetchCtx.Done():
		if ctx.Err() != nil {
			return domain.PriceSnapshot{}, ctx.Err()
		}
		return domain.PriceSnapshot{}, fmt.Errorf("timed out after %s: %w", c.cfg.FetchTimeout, fetchCtx.Err())
	}
}

func asFetchError(symbol string, err error) error {
	var fe *domain.FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return domain.NewFetchError(symbol, err)
}
