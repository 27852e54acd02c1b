package health

import (
	"net"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/oklahomer/go-kasumi/logger"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the service reported alongside the server-wide "" entry.
const ServiceName = "chantbot"

// Server exposes the standard gRPC health protocol. It reports SERVING while
// the Discord gateway is connected.
type Server struct {
	grpcServer *grpc.Server
	health     *grpchealth.Server
	connected  atomic.Bool
}

// NewServer creates a Server that starts out NOT_SERVING.
func NewServer() *Server {
	s := &Server{
		grpcServer: grpc.NewServer(),
		health:     grpchealth.NewServer(),
	}
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.SetServing(false)
	return s
}

// SetServing updates the reported status.
func (s *Server) SetServing(serving bool) {
	s.connected.Store(serving)

	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// IsServing reports the last status set.
func (s *Server) IsServing() bool {
	return s.connected.Load()
}

// ListenAndServe listens on addr and serves until Stop is called.
func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	logger.Infof("Health service listening on %s", lis.Addr())
	return s.Serve(lis)
}

// Serve serves on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// Stop marks every service NOT_SERVING and stops the server.
func (s *Server) Stop() {
	s.connected.Store(false)
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

// OnConnect is registered as a discordgo handler.
func (s *Server) OnConnect(_ *discordgo.Session, _ *discordgo.Connect) {
	s.SetServing(true)
}

// OnDisconnect is registered as a discordgo handler.
func (s *Server) OnDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	logger.Warnf("Gateway disconnected")
	s.SetServing(false)
}
