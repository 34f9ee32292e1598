package quotes

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/simaogato/wealthflow-portfolio/internal/domain"
	"github.com/stretchr/testify/mock"
)

// fakeSource is an upstream price source that counts calls per symbol
type fakeSource struct {
	mu     sync.Mutex
	calls  map[string]int
	prices map[string]domain.PriceSnapshot
	errs   map[string]error
	gates  map[string]chan struct{} // Fetch waits for the gate to close (or ctx)
	onCall func(symbol string)
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		calls:  make(map[string]int),
		prices: make(map[string]domain.PriceSnapshot),
		errs:   make(map[string]error),
		gates:  make(map[string]chan struct{}),
	}
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(ctx context.Context, symbol string) (domain.PriceSnapshot, error) {
	f.mu.Lock()
	f.calls[symbol]++
	snap, known := f.prices[symbol]
	err := f.errs[symbol]
	gate := f.gates[symbol]
	onCall := f.onCall
	f.mu.Unlock()

	if onCall != nil {
		onCall(symbol)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.PriceSnapshot{}, ctx.Err()
		}
	}
	if err != nil {
		return domain.PriceSnapshot{}, err
	}
	if !known {
		return domain.PriceSnapshot{}, domain.ErrSymbolNotFound
	}
	return snap, nil
}

func (f *fakeSource) setPrice(symbol string, price, previousClose float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = domain.PriceSnapshot{Price: price, PreviousClose: previousClose}
}

func (f *fakeSource) setError(symbol string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[symbol] = err
}

func (f *fakeSource) setGate(symbol string, gate chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gates[symbol] = gate
}

func (f *fakeSource) callCount(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[symbol]
}

func (f *fakeSource) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// fakeStore is a quote store kept in memory
type fakeStore struct {
	mu       sync.Mutex
	quotes   map[string]*domain.Quote
	readErr  error
	writeErr error
	upserted chan string
}

func newFakeStore() *fakeStore {
	return &fakeStore{quotes: make(map[string]*domain.Quote), upserted: make(chan string, 64)}
}

func (s *fakeStore) GetBySymbols(_ context.Context, symbols []string) (map[string]*domain.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	out := make(map[string]*domain.Quote)
	for _, symbol := range symbols {
		if q, ok := s.quotes[symbol]; ok {
			out[symbol] = q
		}
	}
	return out, nil
}

func (s *fakeStore) Upsert(_ context.Context, q *domain.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	if q.Supersedes(s.quotes[q.Symbol]) {
		s.quotes[q.Symbol] = q
	}
	select {
	case s.upserted <- q.Symbol:
	default:
	}
	return nil
}

func (s *fakeStore) get(symbol string) *domain.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quotes[symbol]
}

func (s *fakeStore) put(q *domain.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[q.Symbol] = q
}

// fakeClock is a settable clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockHoldingRepository is a mock implementation of HoldingRepository for testing
type MockHoldingRepository struct {
	mock.Mock
}

func (m *MockHoldingRepository) List(ctx context.Context) ([]*domain.Holding, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Holding), args.Error(1)
}

func (m *MockHoldingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Holding, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Holding), args.Error(1)
}

func (m *MockHoldingRepository) Create(ctx context.Context, holding *domain.Holding) error {
	return m.Called(ctx, holding).Error(0)
}

func (m *MockHoldingRepository) Update(ctx context.Context, holding *domain.Holding) error {
	return m.Called(ctx, holding).Error(0)
}

func (m *MockHoldingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockHoldingRepository) ListSymbols(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
