package rpc

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/weiawesome/wes-io-chat/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

type notifierServer struct {
	notifier service.Notifier
}

func (s *notifierServer) Notify(ctx context.Context, req *NotifyRequest) (*NotifyResponse, error) {
	if req.Event == "" {
		return nil, status.Error(codes.InvalidArgument, "event is required")
	}
	if len(req.Targets) == 0 {
		return &NotifyResponse{}, nil
	}

	var payload interface{}
	if len(req.Payload) > 0 {
		payload = req.Payload
	}
	count := s.notifier.Notify(req.Event, req.Targets, payload)

	l := log.Ctx(ctx)
	l.Info().Str(log.FieldEvent, req.Event).Int(log.FieldTargets, len(req.Targets)).Int("delivered", count).Msg("notified users")

	return &NotifyResponse{Delivered: int32(count)}, nil
}

// NewServer builds a gRPC server exposing chat.v1.Notifier on top of notifier.
func NewServer(notifier service.Notifier, logger zerolog.Logger) *grpc.Server {
	s := grpc.NewServer(grpc.UnaryInterceptor(log.UnaryServerInterceptor(logger)))
	RegisterNotifierServer(s, &notifierServer{notifier: notifier})
	return s
}

// StartServer listens on addr and serves in the background.
func StartServer(addr string, notifier service.Notifier, logger zerolog.Logger) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s := NewServer(notifier, logger)
	go func() {
		l := log.L()
		l.Info().Str("address", addr).Msg("notify grpc server listening")
		if err := s.Serve(lis); err != nil {
			l.Error().Err(err).Msg("grpc server error")
		}
	}()

	return s, nil
}
