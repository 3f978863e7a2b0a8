package health

import (
	"DelayBench/internal/config"
	"fmt"
	"log"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// CollectorService is the service name the collector reports under.
const CollectorService = "delaybench.collector"

// Server exposes the standard gRPC health service for a collector.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	lis        net.Listener
}

// NewServer listens on cfg.ListenAddr and starts serving in the background.
// The collector service starts as NOT_SERVING.
func NewServer(cfg config.HealthConfig) (*Server, error) {
	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddr, err)
	}

	s := &Server{
		grpcServer: grpc.NewServer(),
		health:     health.NewServer(),
		lis:        lis,
	}
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.SetServing(false)

	go func() {
		log.Printf("gRPC health server starting on %s", lis.Addr())
		if err := s.grpcServer.Serve(lis); err != nil {
			log.Printf("gRPC health server stopped: %v", err)
		}
	}()
	return s, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() net.Addr { return s.lis.Addr() }

// SetServing reports whether the collector is capturing.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(CollectorService, status)
}

// Stop marks every service NOT_SERVING and stops the server.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
