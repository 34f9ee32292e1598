package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/wealthflow-portfolio/internal/domain"
	"github.com/simaogato/wealthflow-portfolio/internal/usecase/quotes"
	"github.com/simaogato/wealthflow-portfolio/internal/usecase/valuation"
)

const testToken = "test-token"

// MockPortfolioService is a mock implementation of PortfolioService
type MockPortfolioService struct {
	mock.Mock
}

func (m *MockPortfolioService) ListPortfolio(ctx context.Context) ([]valuation.HoldingValuation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]valuation.HoldingValuation), args.Error(1)
}

func (m *MockPortfolioService) Summary(ctx context.Context) ([]valuation.PortfolioSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]valuation.PortfolioSummary), args.Error(1)
}

func (m *MockPortfolioService) GetLots(ctx context.Context, holdingID uuid.UUID) ([]valuation.LotValuation, error) {
	args := m.Called(ctx, holdingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]valuation.LotValuation), args.Error(1)
}

func (m *MockPortfolioService) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Quote), args.Error(1)
}

func (m *MockPortfolioService) RefreshQuotes(ctx context.Context, symbols []string) (quotes.Results, error) {
	args := m.Called(ctx, symbols)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(quotes.Results), args.Error(1)
}

// dial starts the server on an in-memory listener and returns a connected client
func dial(t *testing.T, svc PortfolioService) (*Client, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := NewGRPCServer(NewServer(svc, zerolog.Nop()), testToken)
	go func() {
		_ = s.Serve(lis)
	}()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewClient(conn), conn
}

func authed() context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", testToken)
}

func TestListPortfolio(t *testing.T) {
	svc := new(MockPortfolioService)
	id := uuid.New()
	fetchedAt := time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC)
	svc.On("ListPortfolio", mock.Anything).Return([]valuation.HoldingValuation{{
		HoldingID:      id,
		Symbol:         "ENGI.PA",
		Code:           "ENGI",
		Name:           "Engie",
		Currency:       "EUR",
		LotCount:       2,
		TotalQuantity:  decimal.NewFromInt(15),
		InvestedValue:  decimal.NewFromInt(1600),
		HasQuote:       true,
		LastPrice:      decimal.NewFromInt(130),
		PreviousClose:  decimal.NewNullDecimal(decimal.NewFromInt(125)),
		QuoteFetchedAt: &fetchedAt,
		CurrentValue:   decimal.NewFromInt(1950),
		TotalGainPct:   decimal.RequireFromString("21.88"),
	}}, nil)
	client, _ := dial(t, svc)

	resp, err := client.ListPortfolio(authed())
	require.NoError(t, err)

	holdings := resp.GetFields()["holdings"].GetListValue().GetValues()
	require.Len(t, holdings, 1)
	fields := holdings[0].GetStructValue().GetFields()
	assert.Equal(t, id.String(), fields["id"].GetStringValue())
	assert.Equal(t, "1950.00", fields["current_value"].GetStringValue())
	assert.Equal(t, "21.88", fields["total_gain_pct"].GetStringValue())
	assert.Equal(t, "125", fields["previous_close"].GetStringValue())
	assert.Equal(t, float64(2), fields["lots_count"].GetNumberValue())
	assert.True(t, fields["has_quote"].GetBoolValue())
	assert.Equal(t, "2024-07-01T09:30:00Z", fields["quote_fetched_at"].GetStringValue())
	svc.AssertExpectations(t)
}

func TestUnauthenticated(t *testing.T) {
	svc := new(MockPortfolioService)
	client, _ := dial(t, svc)

	_, err := client.ListPortfolio(context.Background())

	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	svc.AssertNotCalled(t, "ListPortfolio", mock.Anything)
}

func TestHealthCheckWithoutToken(t *testing.T) {
	_, conn := dial(t, new(MockPortfolioService))

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})

	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestGetLots(t *testing.T) {
	t.Run("Invalid id", func(t *testing.T) {
		svc := new(MockPortfolioService)
		client, _ := dial(t, svc)

		_, err := client.GetLots(authed(), "not-a-uuid")

		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("Unknown holding", func(t *testing.T) {
		svc := new(MockPortfolioService)
		id := uuid.New()
		svc.On("GetLots", mock.Anything, id).Return(nil, fmt.Errorf("holding %s: %w", id, domain.ErrNotFound))
		client, _ := dial(t, svc)

		_, err := client.GetLots(authed(), id.String())

		assert.Equal(t, codes.NotFound, status.Code(err))
	})

	t.Run("Lots", func(t *testing.T) {
		svc := new(MockPortfolioService)
		id := uuid.New()
		svc.On("GetLots", mock.Anything, id).Return([]valuation.LotValuation{{
			LotID:        uuid.New(),
			HoldingID:    id,
			BuyDate:      domain.NewDate(2024, time.June, 10),
			BuyPrice:     decimal.NewFromInt(120),
			Quantity:     decimal.NewFromInt(5),
			TotalGainPct: decimal.RequireFromString("8.33"),
		}}, nil)
		client, _ := dial(t, svc)

		resp, err := client.GetLots(authed(), id.String())
		require.NoError(t, err)

		lots := resp.GetFields()["lots"].GetListValue().GetValues()
		require.Len(t, lots, 1)
		fields := lots[0].GetStructValue().GetFields()
		assert.Equal(t, "2024-06-10", fields["buy_date"].GetStringValue())
		assert.Equal(t, "8.33", fields["total_gain_pct"].GetStringValue())
	})
}

func TestGetQuote(t *testing.T) {
	svc := new(MockPortfolioService)
	q, err := domain.NewQuote("AI.PA", domain.PriceSnapshot{Price: 180.5}, time.Now())
	require.NoError(t, err)
	svc.On("GetQuote", mock.Anything, "AI.PA").Return(q, nil)
	svc.On("GetQuote", mock.Anything, "NOPE").Return(nil, fmt.Errorf("quote NOPE: %w", domain.ErrNotFound))
	client, _ := dial(t, svc)

	resp, err := client.GetQuote(authed(), " ai.pa ")
	require.NoError(t, err)
	assert.Equal(t, "180.5", resp.GetFields()["price"].GetStringValue())
	_, isNull := resp.GetFields()["previous_close"].GetKind().(*structpb.Value_NullValue)
	assert.True(t, isNull, "unknown previous close is null")

	_, err = client.GetQuote(authed(), "NOPE")
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.GetQuote(authed(), "  ")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestRefreshQuotes(t *testing.T) {
	svc := new(MockPortfolioService)
	q, err := domain.NewQuote("ENGI.PA", domain.PriceSnapshot{Price: 131, PreviousClose: 125}, time.Now())
	require.NoError(t, err)
	svc.On("RefreshQuotes", mock.Anything, []string{"ENGI.PA", "BAD"}).Return(quotes.Results{
		"ENGI.PA": {Quote: q},
		"BAD":     {Err: domain.NewFetchError("BAD", domain.ErrSymbolNotFound)},
	}, nil)
	client, _ := dial(t, svc)

	resp, err := client.RefreshQuotes(authed(), []string{"engi.pa", "BAD", "ENGI.PA"})
	require.NoError(t, err)

	fields := resp.GetFields()
	assert.Equal(t, float64(1), fields["count"].GetNumberValue())
	refreshed := fields["refreshed"].GetListValue().GetValues()
	require.Len(t, refreshed, 1)
	assert.Equal(t, "131", refreshed[0].GetStructValue().GetFields()["price"].GetStringValue())
	assert.Contains(t, fields["errors"].GetStructValue().GetFields(), "BAD")
}

func TestGetSummary_InternalErrorHidden(t *testing.T) {
	svc := new(MockPortfolioService)
	svc.On("Summary", mock.Anything).Return(nil, errors.New("pq: connection refused"))
	client, _ := dial(t, svc)

	_, err := client.GetSummary(authed())

	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Internal, st.Code())
	assert.NotContains(t, st.Message(), "pq")
}
