package hostrpc

import (
	"context"

	"google.golang.org/grpc"
)

// Service is implemented by the coordinator-backed handler in server.go;
// kept separate from that implementation so the hand-assembled
// ServiceDesc below reads the way generated _grpc.pb.go code would.
type Service interface {
	Open(ctx context.Context, req *OpenRequest) (*OpenResponse, error)
	Channel(stream ChannelStream) error
	Close(ctx context.Context, req *CloseRequest) (*CloseResponse, error)
}

// ChannelStream is the typed view over the bidirectional channel RPC's
// raw grpc.ServerStream, mirroring what protoc-gen-go-grpc would emit
// for a `stream ClientUpdate returns (stream ServerUpdate)` method.
type ChannelStream interface {
	Send(*ServerUpdate) error
	Recv() (*ClientUpdate, error)
	Context() context.Context
}

type channelStream struct{ grpc.ServerStream }

func (s *channelStream) Send(msg *ServerUpdate) error { return s.ServerStream.SendMsg(msg) }

func (s *channelStream) Recv() (*ClientUpdate, error) {
	msg := new(ClientUpdate)
	if err := s.ServerStream.RecvMsg(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func openHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(OpenRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Service).Open(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Open"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Service).Open(ctx, req.(*OpenRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func closeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(CloseRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Service).Close(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Close"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Service).Close(ctx, req.(*CloseRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func channelHandler(srv any, stream grpc.ServerStream) error {
	return srv.(Service).Channel(&channelStream{ServerStream: stream})
}

// ServiceName is the RPC service path exposed over HTTP/2, matching
// §6's external-interface naming.
const ServiceName = "shareterm.coordinator.HostRPC"

// serviceDesc is the hand-assembled equivalent of what protoc-gen-go-grpc
// would generate from a .proto with Open/Close unary methods and a
// bidirectional Channel stream.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Service)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Open", Handler: openHandler},
		{MethodName: "Close", Handler: closeHandler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Channel",
			Handler:       channelHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
}

// RegisterService attaches svc to s under the hand-assembled ServiceDesc.
func RegisterService(s *grpc.Server, svc Service) {
	s.RegisterService(&serviceDesc, svc)
}
