package server

import (
	"chat-relay/errors"
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const presenceServiceName = "chatrelay.v1.PresenceService"

// PresenceSource is the part of the orchestrator the presence RPC reads.
type PresenceSource interface {
	Presence(ctx context.Context) ([]string, error)
}

// PresenceServer answers with the sorted online identity ids. It is built on
// protobuf well-known types so it needs no generated stubs.
type PresenceServer struct {
	source PresenceSource
}

func NewPresenceServer(source PresenceSource) *PresenceServer {
	return &PresenceServer{source: source}
}

func (s *PresenceServer) Online(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	online, err := s.source.Presence(ctx)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	values := make([]any, 0, len(online))
	for _, id := range online {
		values = append(values, id)
	}
	return structpb.NewList(values)
}

type presenceService interface {
	Online(ctx context.Context, in *emptypb.Empty) (*structpb.ListValue, error)
}

// presenceServiceDesc has no registered file descriptor: reflection lists the
// service but cannot describe it, so grpcurl needs the method name.
var presenceServiceDesc = grpc.ServiceDesc{
	ServiceName: presenceServiceName,
	HandlerType: (*presenceService)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Online",
			Handler:    onlineHandler,
		},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterPresenceServer(registrar grpc.ServiceRegistrar, srv *PresenceServer) {
	registrar.RegisterService(&presenceServiceDesc, srv)
}

func onlineHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(presenceService).Online(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + presenceServiceName + "/Online",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(presenceService).Online(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// OnlineIdentities calls the presence RPC on an existing client connection.
func OnlineIdentities(ctx context.Context, conn grpc.ClientConnInterface) ([]string, error) {
	out := new(structpb.ListValue)
	if err := conn.Invoke(ctx, "/"+presenceServiceName+"/Online", &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		ids = append(ids, v.GetStringValue())
	}
	return ids, nil
}
