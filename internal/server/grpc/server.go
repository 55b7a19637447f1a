// Package grpc serves the gRPC side of petauth. Every unary call except
// health checks passes through the authentication gate. Session.Me is the
// authenticated service; the standard health service reports readiness.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/petauth/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is reported by the health service.
const ServiceName = "petauth"

type GRPCServer struct {
	address    string
	gate       Authenticator
	identities IdentityService
	logger     logging.Logger
	health     *health.Server
}

func NewGRPCServer(address string, g Authenticator, identities IdentityService, l logging.Logger) *GRPCServer {
	return &GRPCServer{
		address:    address,
		gate:       g,
		identities: identities,
		logger:     l.With("module", "grpc_server"),
		health:     health.NewServer(),
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on listen until ctx is done, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		s.requestIDInterceptor,
		s.authInterceptor,
	))

	srv.RegisterService(&sessionServiceDesc, s)
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(SessionServiceName, healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
