package grpcserver

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"marketstate/api/view"
	"marketstate/service"
)

// Store is the read side of service.StateStore.
type Store interface {
	service.BookService
	service.TickerService
	service.TradeService
}

// Server adapts the state store to gRPC. It is read only; state changes
// only through the feeds.
type Server struct {
	store Store
}

func NewServer(store Store) *Server {
	return &Server{store: store}
}

var _ MarketStateServer = (*Server)(nil)

// -------------------- Order book --------------------

func (s *Server) GetTop(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	top, ok := s.store.GetTop()
	if !ok {
		return nil, status.Error(codes.NotFound, "order book is empty")
	}
	return toStruct(view.Top(top))
}

func (s *Server) GetFullBook(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(view.FullBook(s.store.GetFullBook()))
}

// -------------------- Ticker --------------------

func (s *Server) GetTicker(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(view.Ticker(s.store.GetTickerSnapshot()))
}

func (s *Server) GetMidPrice(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.DoubleValue, error) {
	return wrapperspb.Double(s.store.GetMidPrice()), nil
}

func (s *Server) GetMidWeightedPrice(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.DoubleValue, error) {
	return wrapperspb.Double(s.store.GetMidWeightedPrice()), nil
}

// -------------------- Trades --------------------

func (s *Server) GetTotalVolume(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.DoubleValue, error) {
	return wrapperspb.Double(s.store.GetTotalVolume()), nil
}

func (s *Server) GetAverageVolumePerTrade(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.DoubleValue, error) {
	return wrapperspb.Double(s.store.GetAverageVolumePerTrade()), nil
}

// -------------------- Plumbing --------------------

func toStruct(m map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return st, nil
}

// LoggingInterceptor logs every call at debug level and failures other
// than NotFound at warn.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("took", time.Since(start)),
		}
		if err != nil && code != codes.NotFound {
			logger.Warn("[gRPC] call failed", append(fields, zap.Error(err))...)
		} else {
			logger.Debug("[gRPC] call", fields...)
		}
		return resp, err
	}
}
