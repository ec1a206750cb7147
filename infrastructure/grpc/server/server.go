package server

import (
	"context"
	"log/slog"
	"net"

	sdkgrpc "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service key of the realtime relay.
const ServiceName = "chatrelay.v1.Relay"

// OpsServer is the operational gRPC endpoint: health checks, a presence
// query and reflection for grpcurl.
type OpsServer struct {
	log    *slog.Logger
	server *grpc.Server
	health *health.Server
}

func NewOpsServer(log *slog.Logger, presence PresenceSource) *OpsServer {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(sdkgrpc.UnaryLoggingInterceptor(log)))
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s, healthServer)
	RegisterPresenceServer(s, NewPresenceServer(presence))
	reflection.Register(s)
	return &OpsServer{log: log, server: s, health: healthServer}
}

// Track reports SERVING once ready is closed and NOT_SERVING again when ctx
// ends. It blocks until ctx is done.
func (o *OpsServer) Track(ctx context.Context, ready <-chan struct{}) {
	select {
	case <-ready:
		o.setStatus(healthpb.HealthCheckResponse_SERVING)
	case <-ctx.Done():
		return
	}
	<-ctx.Done()
	o.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
}

func (o *OpsServer) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	o.log.Info("Health status changed", "status", status.String())
	o.health.SetServingStatus("", status)
	o.health.SetServingStatus(ServiceName, status)
}

func (o *OpsServer) Serve(listener net.Listener) error {
	for serviceName := range o.server.GetServiceInfo() {
		o.log.Debug("gRPC exposed service", "name", serviceName)
	}
	return o.server.Serve(listener)
}

func (o *OpsServer) GracefulStop() {
	o.health.Shutdown()
	o.server.GracefulStop()
}
