package host

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported next to the overall ("") status.
const ServiceName = "benq.projector"

// HealthServer exposes the grpc.health.v1 service. The projector bridge
// liveness drives the serving status.
type HealthServer struct {
	addr string

	grpcServer *grpc.Server
	listener   net.Listener
	health     *health.Server
	socketPath string
}

// NewHealthServer accepts "unix:///path/to.sock", "unix:/path" or host:port.
func NewHealthServer(addr string) *HealthServer {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{addr: strings.TrimSpace(addr), health: hs}
}

func (s *HealthServer) Start() error {
	network, address := "tcp", s.addr
	if strings.HasPrefix(s.addr, "unix:") {
		network = "unix"
		address = strings.TrimPrefix(strings.TrimPrefix(s.addr, "unix:"), "//")
		// Ensure directory exists and remove stale socket
		if err := os.MkdirAll(filepath.Dir(address), 0o755); err != nil {
			return err
		}
		_ = os.Remove(address)
		s.socketPath = address
	}

	lis, err := net.Listen(network, address)
	if err != nil {
		return fmt.Errorf("health listen %s: %w", s.addr, err)
	}
	s.listener = lis
	s.grpcServer = grpc.NewServer()

	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	reflection.Register(s.grpcServer)

	go func() {
		_ = s.grpcServer.Serve(lis)
	}()
	return nil
}

// Addr is the bound listener address, useful when started on port 0.
func (s *HealthServer) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// SetServing implements driversdk.HealthReporter.
func (s *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *HealthServer) Stop() {
	s.health.Shutdown()
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.socketPath != "" {
		_ = os.Remove(s.socketPath)
	}
}
