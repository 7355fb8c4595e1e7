package grpc_control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The admin API uses only well-known types, so the service descriptor is
// declared here instead of being generated from a .proto file.
const (
	serviceName = "streamadmin.StreamAdmin"

	methodGetStats          = "/" + serviceName + "/GetStats"
	methodListSubscriptions = "/" + serviceName + "/ListSubscriptions"
	methodDisconnectSession = "/" + serviceName + "/DisconnectSession"
)

// StreamAdminServer is the server API for the StreamAdmin service.
type StreamAdminServer interface {
	GetStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListSubscriptions(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	DisconnectSession(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
}

func RegisterStreamAdminServer(s grpc.ServiceRegistrar, srv StreamAdminServer) {
	s.RegisterService(&StreamAdminServiceDesc, srv)
}

var StreamAdminServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*StreamAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStats", Handler: getStatsHandler},
		{MethodName: "ListSubscriptions", Handler: listSubscriptionsHandler},
		{MethodName: "DisconnectSession", Handler: disconnectSessionHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "streamadmin.proto",
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

func getStatsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StreamAdminServer).GetStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetStats}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StreamAdminServer).GetStats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func listSubscriptionsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StreamAdminServer).ListSubscriptions(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodListSubscriptions}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StreamAdminServer).ListSubscriptions(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func disconnectSessionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StreamAdminServer).DisconnectSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodDisconnectSession}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StreamAdminServer).DisconnectSession(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

// StreamAdminClient calls the StreamAdmin service.
type StreamAdminClient struct {
	cc grpc.ClientConnInterface
}

func NewStreamAdminClient(cc grpc.ClientConnInterface) *StreamAdminClient {
	return &StreamAdminClient{cc: cc}
}

func (c *StreamAdminClient) GetStats(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetStats, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StreamAdminClient) ListSubscriptions(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodListSubscriptions, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StreamAdminClient) DisconnectSession(ctx context.Context, sessionID string, opts ...grpc.CallOption) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, methodDisconnectSession, wrapperspb.String(sessionID), out, opts...); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}
