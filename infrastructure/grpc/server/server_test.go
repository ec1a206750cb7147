package server

import (
	"chat-relay/errors"
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	reflectionpb "google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type staticPresence struct {
	online []string
	err    error
}

func (p staticPresence) Presence(context.Context) ([]string, error) {
	return p.online, p.err
}

func startOps(t *testing.T, presence PresenceSource) (*OpsServer, *grpc.ClientConn) {
	listener := bufconn.Listen(1024 * 1024)
	ops := NewOpsServer(logs.GetLoggerFromLevel(slog.LevelDebug), presence)
	go func() { _ = ops.Serve(listener) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		ops.GracefulStop()
	})
	return ops, conn
}

func TestOpsServer_Health_Follows_Readiness(t *testing.T) {
	req := require.New(t)
	ops, conn := startOps(t, staticPresence{})
	client := healthpb.NewHealthClient(conn)
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	tracked := make(chan struct{})
	go func() {
		defer close(tracked)
		ops.Track(ctx, ready)
	}()

	// Given an orchestrator that has not started yet
	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	req.NoError(err)
	req.Equal(healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	// When it becomes ready
	close(ready)

	// Then the relay reports serving
	req.Eventually(func() bool {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 10*time.Millisecond)

	// When shutdown begins
	cancel()
	<-tracked

	// Then it stops serving
	resp, err = client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	req.NoError(err)
	req.Equal(healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

func TestOpsServer_Presence_Returns_Online_Identities(t *testing.T) {
	req := require.New(t)

	// Given two identities online
	_, conn := startOps(t, staticPresence{online: []string{"alice", "bob"}})

	// When calling the presence RPC
	online, err := OnlineIdentities(context.Background(), conn)

	// Then both ids come back in order
	req.NoError(err)
	req.Equal([]string{"alice", "bob"}, online)
}

func TestOpsServer_Presence_Maps_Stopped_Loop(t *testing.T) {
	req := require.New(t)

	// Given an orchestrator that has stopped
	_, conn := startOps(t, staticPresence{err: errors.ErrLoopStopped})

	// When calling the presence RPC
	_, err := OnlineIdentities(context.Background(), conn)

	// Then the caller sees Unavailable
	req.Error(err)
	req.Equal(codes.Unavailable, status.Code(err))
}

func TestOpsServer_Reflection_Lists_Services(t *testing.T) {
	req := require.New(t)
	_, conn := startOps(t, staticPresence{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := reflectionpb.NewServerReflectionClient(conn).ServerReflectionInfo(ctx)
	req.NoError(err)

	// When the services are listed
	req.NoError(stream.Send(&reflectionpb.ServerReflectionRequest{
		MessageRequest: &reflectionpb.ServerReflectionRequest_ListServices{ListServices: "*"},
	}))
	resp, err := stream.Recv()
	req.NoError(err)

	// Then health and presence are both advertised
	var names []string
	for _, service := range resp.GetListServicesResponse().GetService() {
		names = append(names, service.GetName())
	}
	req.Contains(names, healthpb.Health_ServiceDesc.ServiceName)
	req.Contains(names, presenceServiceName)

	// And presence has no descriptor to describe
	req.NoError(stream.Send(&reflectionpb.ServerReflectionRequest{
		MessageRequest: &reflectionpb.ServerReflectionRequest_FileContainingSymbol{FileContainingSymbol: presenceServiceName},
	}))
	resp, err = stream.Recv()
	req.NoError(err)
	req.NotNil(resp.GetErrorResponse())
	req.NoError(stream.CloseSend())
}
