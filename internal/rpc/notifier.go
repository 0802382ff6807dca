package rpc

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
)

const (
	serviceName  = "chat.v1.Notifier"
	notifyMethod = "/" + serviceName + "/Notify"
)

// NotifyRequest pushes event with payload to every live connection of targets.
type NotifyRequest struct {
	Event   string          `json:"event"`
	Targets []string        `json:"targets"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type NotifyResponse struct {
	Delivered int32 `json:"delivered"`
}

// NotifierServer is the server API for the chat.v1.Notifier service.
type NotifierServer interface {
	Notify(ctx context.Context, req *NotifyRequest) (*NotifyResponse, error)
}

func RegisterNotifierServer(s grpc.ServiceRegistrar, srv NotifierServer) {
	s.RegisterService(&notifierServiceDesc, srv)
}

func notifyHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(NotifyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NotifierServer).Notify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: notifyMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(NotifierServer).Notify(ctx, req.(*NotifyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var notifierServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*NotifierServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Notify",
			Handler:    notifyHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "chat/v1/notifier",
}
