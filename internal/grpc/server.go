// Package grpcserver hosts the real-time survey service and the standard
// gRPC health service on one listener.
package grpcserver

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"droneSurveyManagement/internal/auth"
	"droneSurveyManagement/internal/config"
	"droneSurveyManagement/internal/realtime"
)

const (
	healthCheckMethod = "/grpc.health.v1.Health/Check"
	healthWatchMethod = "/grpc.health.v1.Health/Watch"
)

// Server is a running gRPC server.
type Server struct {
	srv    *grpc.Server
	health *health.Server
	lis    net.Listener
	log    *slog.Logger
}

// StartGRPC listens on cfg.GRPC.Address and serves the real-time service
// behind the JWT interceptors. Health checks are reachable without a token.
func StartGRPC(cfg *config.Config, rt realtime.RealtimeServer, log *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	addr := cfg.GRPC.Address
	if addr == "" {
		addr = ":50051"
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	srv := grpc.NewServer(
		grpc.UnaryInterceptor(auth.NewUnaryAuthInterceptor(cfg.Auth.JWTSecret, healthCheckMethod)),
		grpc.StreamInterceptor(auth.NewStreamAuthInterceptor(cfg.Auth.JWTSecret, healthWatchMethod)),
	)
	realtime.RegisterWith(srv, rt)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(realtime.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	s := &Server{srv: srv, health: hs, lis: lis, log: log.With("component", "grpc")}
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.log.Error("grpc serve stopped", "err", err)
		}
	}()
	s.log.Info("grpc server listening", "addr", lis.Addr().String())
	return s, nil
}

// Addr is the bound listen address.
func (s *Server) Addr() net.Addr { return s.lis.Addr() }

// Shutdown marks the server NOT_SERVING and drains open streams, forcing a
// stop when ctx expires first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() { s.srv.GracefulStop(); close(done) }()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.srv.Stop()
		return ctx.Err()
	}
}
