// Package server hosts the gRPC endpoint of the paper feed service, which
// serves the standard health and reflection services.
package server

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// ServiceName is the health-check service name of the paper feed.
const ServiceName = "paperfeed.v1.PaperFeedService"

// GRPCServer wraps a grpc.Server with a health service.
type GRPCServer struct {
	server *grpc.Server
	health *health.Server
	logger zerolog.Logger
}

// NewGRPCServer creates the gRPC server. The paper feed service starts as
// NOT_SERVING until SetServing(true) is called.
func NewGRPCServer(logger zerolog.Logger, opts ...grpc.ServerOption) *GRPCServer {
	logger = logger.With().Str("component", "grpc-server").Logger()

	base := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(4 * 1024 * 1024),
		grpc.MaxConcurrentStreams(100),
		grpc.ChainUnaryInterceptor(loggingInterceptor(logger)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     15 * time.Minute,
			MaxConnectionAge:      30 * time.Minute,
			MaxConnectionAgeGrace: 5 * time.Minute,
			Time:                  5 * time.Minute,
			Timeout:               1 * time.Minute,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Minute,
			PermitWithoutStream: true,
		}),
	}

	s := &GRPCServer{
		server: grpc.NewServer(append(base, opts...)...),
		health: health.NewServer(),
		logger: logger,
	}

	healthpb.RegisterHealthServer(s.server, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	reflection.Register(s.server)

	return s
}

// SetServing updates the health status of the paper feed service.
func (s *GRPCServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, st)
}

// Serve accepts connections on lis until Stop is called.
func (s *GRPCServer) Serve(lis net.Listener) error {
	s.logger.Info().Str("address", lis.Addr().String()).Msg("gRPC server starting")
	return s.server.Serve(lis)
}

// Stop marks every service NOT_SERVING and stops gracefully, forcing the stop
// once ctx expires.
func (s *GRPCServer) Stop(ctx context.Context) {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.logger.Info().Msg("gRPC server stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn().Msg("gRPC server forced shutdown due to timeout")
		s.server.Stop()
	}
}

func loggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug().
			Str("method", info.FullMethod).
			Str("code", status.Code(err).String()).
			Dur("duration", time.Since(start)).
			Msg("grpc request")
		return resp, err
	}
}
