package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

/*
The service is described by hand instead of generated from a .proto:
every request is google.protobuf.Empty and every response is a
well-known type, so there are no messages of our own to generate.

	service MarketState {
	  rpc GetTop(Empty) returns (Struct);
	  rpc GetFullBook(Empty) returns (Struct);
	  rpc GetTicker(Empty) returns (Struct);
	  rpc GetMidPrice(Empty) returns (DoubleValue);
	  rpc GetMidWeightedPrice(Empty) returns (DoubleValue);
	  rpc GetTotalVolume(Empty) returns (DoubleValue);
	  rpc GetAverageVolumePerTrade(Empty) returns (DoubleValue);
	}
*/

const ServiceName = "marketstate.v1.MarketState"

type MarketStateServer interface {
	GetTop(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetFullBook(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetTicker(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetMidPrice(context.Context, *emptypb.Empty) (*wrapperspb.DoubleValue, error)
	GetMidWeightedPrice(context.Context, *emptypb.Empty) (*wrapperspb.DoubleValue, error)
	GetTotalVolume(context.Context, *emptypb.Empty) (*wrapperspb.DoubleValue, error)
	GetAverageVolumePerTrade(context.Context, *emptypb.Empty) (*wrapperspb.DoubleValue, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MarketStateServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetTop", MarketStateServer.GetTop),
		unary("GetFullBook", MarketStateServer.GetFullBook),
		unary("GetTicker", MarketStateServer.GetTicker),
		unary("GetMidPrice", MarketStateServer.GetMidPrice),
		unary("GetMidWeightedPrice", MarketStateServer.GetMidWeightedPrice),
		unary("GetTotalVolume", MarketStateServer.GetTotalVolume),
		unary("GetAverageVolumePerTrade", MarketStateServer.GetAverageVolumePerTrade),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "marketstate/v1/market_state.proto",
}

func Register(s grpc.ServiceRegistrar, srv MarketStateServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary[Resp any](name string, call func(MarketStateServer, context.Context, *emptypb.Empty) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(emptypb.Empty)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(MarketStateServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(MarketStateServer), ctx, req.(*emptypb.Empty))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
