// Package grpc runs the internal gRPC endpoint: the standard health service
// behind the same authentication gate as the HTTP API.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/cerberus/internal/logging"
	"github.com/dmitrijs2005/cerberus/internal/server/gate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// CheckMethod stays reachable without credentials so probes can call it.
const CheckMethod = "/grpc.health.v1.Health/Check"

type GRPCServer struct {
	address string
	gate    *gate.Gate
	health  *health.Server
	logger  logging.Logger
}

func NewGRPCServer(a string, g *gate.Gate, l logging.Logger) *GRPCServer {
	s := &GRPCServer{
		address: a,
		gate:    g,
		health:  health.NewServer(),
		logger:  l.With("module", "grpc_server"),
	}
	s.SetServing(true)
	return s
}

// SetServing flips the overall health status reported to clients.
func (s *GRPCServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.unaryAuthInterceptor),
		grpc.ChainStreamInterceptor(s.streamAuthInterceptor),
	)

	healthpb.RegisterHealthServer(srv, s.health)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
