// Package observability provides gRPC interceptors for metrics and logging.
package observability

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"speech-transcript-service/internal/observability/metrics"
)

// UnaryServerInterceptor returns a gRPC unary interceptor for logging.
// Health checks are logged at debug level.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		ev := log.Info()
		if isHealthCheck(info.FullMethod) {
			ev = log.Debug()
		}
		callEvent(ev, info.FullMethod, err, time.Since(start)).Msg("gRPC unary call")

		return resp, err
	}
}

// StreamServerInterceptor returns a gRPC stream interceptor for metrics and logging.
func StreamServerInterceptor(m *metrics.Metrics) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()
		m.RecordStreamStart()

		err := handler(srv, ss)

		duration := time.Since(start)
		success := err == nil
		m.RecordStreamEnd(success, duration.Seconds())

		callEvent(log.Info(), info.FullMethod, err, duration).
			Bool("success", success).
			Msg("gRPC stream completed")

		return err
	}
}

// callEvent adds the fields shared by unary and stream call logs.
func callEvent(ev *zerolog.Event, fullMethod string, err error, d time.Duration) *zerolog.Event {
	service, method := splitMethod(fullMethod)
	st, _ := status.FromError(err)
	return ev.Str("service", service).
		Str("method", method).
		Str("code", st.Code().String()).
		Dur("duration", d)
}

// splitMethod splits "/pkg.Service/Method" into its service and method.
// A name without a slash is returned as the method.
func splitMethod(fullMethod string) (service, method string) {
	name := strings.TrimPrefix(fullMethod, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

func isHealthCheck(method string) bool {
	return method == "/grpc.health.v1.Health/Check"
}
