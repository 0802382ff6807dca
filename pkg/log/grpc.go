package log

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const metadataKeyRequestID = "x-request-id"

// UnaryServerInterceptor injects a per-call logger into the handler context
// and logs each call once it returns. Failed calls are logged at warn.
func UnaryServerInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		lc := logger.With().
			Str(FieldRequestID, incomingRequestID(ctx)).
			Str(FieldGRPCMethod, info.FullMethod)
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			lc = lc.Str(FieldClientIP, p.Addr.String())
		}
		child := lc.Logger()

		resp, err := handler(WithLogger(ctx, child), req)

		code := status.Code(err)
		evt := child.Info()
		if code != codes.OK {
			evt = child.Warn().Err(err)
		}
		evt.Str(FieldGRPCCode, code.String()).
			Float64(FieldLatency, float64(time.Since(start).Milliseconds())).
			Msg("unary call completed")

		return resp, err
	}
}

func incomingRequestID(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if vals := md.Get(metadataKeyRequestID); len(vals) > 0 && vals[0] != "" {
		return vals[0]
	}
	return uuid.NewString()
}
