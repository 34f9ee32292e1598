package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified name of the portfolio service
const ServiceName = "portfolio.v1.PortfolioService"

// PortfolioServiceServer is the server API for the portfolio service.
// Requests and responses are protobuf well-known types; responses carry
// the same fields as the JSON API.
type PortfolioServiceServer interface {
	ListPortfolio(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetSummary(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetLots(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	GetQuote(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	RefreshQuotes(context.Context, *structpb.ListValue) (*structpb.Struct, error)
}

// ServiceDesc describes the portfolio service for grpc.ServiceRegistrar
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PortfolioServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListPortfolio", newEmpty, PortfolioServiceServer.ListPortfolio),
		unary("GetSummary", newEmpty, PortfolioServiceServer.GetSummary),
		unary("GetLots", newString, PortfolioServiceServer.GetLots),
		unary("GetQuote", newString, PortfolioServiceServer.GetQuote),
		unary("RefreshQuotes", newList, PortfolioServiceServer.RefreshQuotes),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterPortfolioServiceServer registers srv on s
func RegisterPortfolioServiceServer(s grpc.ServiceRegistrar, srv PortfolioServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func newEmpty() *emptypb.Empty { return &emptypb.Empty{} }
func newString() *wrapperspb.StringValue { return &wrapperspb.StringValue{} }
func newList() *structpb.ListValue { return &structpb.ListValue{} }

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// unary builds the method descriptor of one RPC: decode the request, then run
// the call through the server interceptor chain
func unary[T proto.Message](
	name string,
	newRequest func() T,
	call func(PortfolioServiceServer, context.Context, T) (*structpb.Struct, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := newRequest()
			if err := dec(in); err != nil {
				return nil, err
			}

			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(PortfolioServiceServer), ctx, req.(T))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(name),
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Client calls the portfolio service over a client connection
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a portfolio service client
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) ListPortfolio(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListPortfolio", newEmpty(), opts)
}

func (c *Client) GetSummary(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetSummary", newEmpty(), opts)
}

func (c *Client) GetLots(ctx context.Context, holdingID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetLots", wrapperspb.String(holdingID), opts)
}

func (c *Client) GetQuote(ctx context.Context, symbol string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetQuote", wrapperspb.String(symbol), opts)
}

// RefreshQuotes force refreshes symbols; no symbols means every held symbol
func (c *Client) RefreshQuotes(ctx context.Context, symbols []string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in := newList()
	for _, symbol := range symbols {
		in.Values = append(in.Values, structpb.NewStringValue(symbol))
	}
	return c.invoke(ctx, "RefreshQuotes", in, opts)
}

func (c *Client) invoke(ctx context.Context, method string, in proto.Message, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
