package grpc

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/simaogato/wealthflow-portfolio/internal/domain"
	"github.com/simaogato/wealthflow-portfolio/internal/usecase/quotes"
	"github.com/simaogato/wealthflow-portfolio/internal/usecase/valuation"
)

// PortfolioService is the subset of portfolio.Service exposed over gRPC
type PortfolioService interface {
	ListPortfolio(ctx context.Context) ([]valuation.HoldingValuation, error)
	Summary(ctx context.Context) ([]valuation.PortfolioSummary, error)
	GetLots(ctx context.Context, holdingID uuid.UUID) ([]valuation.LotValuation, error)
	GetQuote(ctx context.Context, symbol string) (*domain.Quote, error)
	RefreshQuotes(ctx context.Context, symbols []string) (quotes.Results, error)
}

// Server implements the PortfolioService gRPC server
type Server struct {
	Service PortfolioService
	log     zerolog.Logger
}

// NewServer creates a new gRPC server instance
func NewServer(service PortfolioService, log zerolog.Logger) *Server {
	return &Server{
		Service: service,
		log:     log.With().Str("component", "grpc").Logger(),
	}
}

// NewGRPCServer builds a grpc.Server serving srv behind the auth interceptor,
// together with the standard health service and reflection
func NewGRPCServer(srv *Server, apiToken string) *grpc.Server {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			LoggingInterceptor(srv.log),
			AuthInterceptor(apiToken),
		),
	)

	RegisterPortfolioServiceServer(s, srv)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthServer)

	reflection.Register(s)
	return s
}

// ListPortfolio handles the ListPortfolio RPC
func (s *Server) ListPortfolio(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	valuations, err := s.Service.ListPortfolio(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}

	holdings := make([]interface{}, len(valuations))
	for i, v := range valuations {
		holdings[i] = holdingValuationFields(v)
	}
	return newStruct(map[string]interface{}{"holdings": holdings})
}

// GetSummary handles the GetSummary RPC
func (s *Server) GetSummary(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	summaries, err := s.Service.Summary(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}

	items := make([]interface{}, len(summaries))
	for i, sum := range summaries {
		items[i] = summaryFields(sum)
	}
	return newStruct(map[string]interface{}{"summaries": items})
}

// GetLots handles the GetLots RPC
func (s *Server) GetLots(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	holdingID, err := uuid.Parse(req.GetValue())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid holding_id format: %v", err)
	}

	lots, err := s.Service.GetLots(ctx, holdingID)
	if err != nil {
		return nil, s.mapError(err)
	}

	items := make([]interface{}, len(lots))
	for i, lot := range lots {
		items[i] = lotValuationFields(lot)
	}
	return newStruct(map[string]interface{}{"lots": items})
}

// GetQuote handles the GetQuote RPC
func (s *Server) GetQuote(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	symbol := domain.NormalizeSymbol(req.GetValue())
	if symbol == "" {
		return nil, status.Error(codes.InvalidArgument, "symbol is required")
	}

	q, err := s.Service.GetQuote(ctx, symbol)
	if err != nil {
		return nil, s.mapError(err)
	}
	return newStruct(quoteFields(q))
}

// RefreshQuotes handles the RefreshQuotes RPC; an empty list refreshes every held symbol
func (s *Server) RefreshQuotes(ctx context.Context, req *structpb.ListValue) (*structpb.Struct, error) {
	symbols := make([]string, 0, len(req.GetValues()))
	for _, v := range req.GetValues() {
		str, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, status.Error(codes.InvalidArgument, "symbols must be strings")
		}
		symbols = append(symbols, str.StringValue)
	}
	symbols = domain.NormalizeSymbols(symbols)

	results, err := s.Service.RefreshQuotes(ctx, symbols)
	if err != nil {
		return nil, s.mapError(err)
	}
	return newStruct(refreshFields(results))
}

// mapError converts domain errors to gRPC status errors; unexpected errors are logged, not returned
func (s *Server) mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		s.log.Error().Err(err).Msg("Unhandled error")
		return status.Error(codes.Internal, "internal error")
	}
}

func newStruct(fields map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}
