package memory

import (
	"context"
	"sync"

	"github.com/simaogato/wealthflow-portfolio/internal/domain"
)

// QuoteStore implements domain.QuoteRepository in memory.
// Upserts of different symbols never contend; each symbol has its own lock.
type QuoteStore struct {
	quotes sync.Map // symbol -> *domain.Quote
	locks  sync.Map // symbol -> *sync.Mutex
}

// NewQuoteStore creates an empty quote store
func NewQuoteStore() *QuoteStore {
	return &QuoteStore{}
}

// GetBySymbols returns the stored quotes of symbols keyed by symbol
func (s *QuoteStore) GetBySymbols(_ context.Context, symbols []string) (map[string]*domain.Quote, error) {
	out := make(map[string]*domain.Quote, len(symbols))
	for _, symbol := range symbols {
		if v, ok := s.quotes.Load(symbol); ok {
			out[symbol] = v.(*domain.Quote)
		}
	}
	return out, nil
}

// Upsert stores q unless a quote fetched later is already stored
func (s *QuoteStore) Upsert(_ context.Context, q *domain.Quote) error {
	if err := q.Validate(); err != nil {
		return err
	}

	lock := s.lockFor(q.Symbol)
	lock.Lock()
	defer lock.Unlock()

	var stored *domain.Quote
	if v, ok := s.quotes.Load(q.Symbol); ok {
		stored = v.(*domain.Quote)
	}
	if q.Supersedes(stored) {
		copied := *q
		s.quotes.Store(q.Symbol, &copied)
	}
	return nil
}

func (s *QuoteStore) lockFor(symbol string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(symbol, &sync.Mutex{})
	return v.(*sync.Mutex)
}
