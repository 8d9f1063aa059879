package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls MarketState over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) GetTop(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("GetTop"), &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetFullBook(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("GetFullBook"), &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetTicker(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("GetTicker"), &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetMidPrice(ctx context.Context, opts ...grpc.CallOption) (float64, error) {
	return c.double(ctx, "GetMidPrice", opts)
}

func (c *Client) GetMidWeightedPrice(ctx context.Context, opts ...grpc.CallOption) (float64, error) {
	return c.double(ctx, "GetMidWeightedPrice", opts)
}

func (c *Client) GetTotalVolume(ctx context.Context, opts ...grpc.CallOption) (float64, error) {
	return c.double(ctx, "GetTotalVolume", opts)
}

func (c *Client) GetAverageVolumePerTrade(ctx context.Context, opts ...grpc.CallOption) (float64, error) {
	return c.double(ctx, "GetAverageVolumePerTrade", opts)
}

func (c *Client) double(ctx context.Context, method string, opts []grpc.CallOption) (float64, error) {
	out := new(wrapperspb.DoubleValue)
	if err := c.cc.Invoke(ctx, fullMethod(method), &emptypb.Empty{}, out, opts...); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}
