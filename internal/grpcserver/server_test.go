package grpcserver_test

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"jobmate/jobs-service/internal/grpcserver"
	"jobmate/jobs-service/internal/logging"
)

func startServer(t *testing.T, probes map[string]grpcserver.Probe) (*grpcserver.Server, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpcserver.NewServer(probes, logging.Nop())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return srv, healthpb.NewHealthClient(conn)
}

func status(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := c.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealth_ReportsDependencies(t *testing.T) {
	var cacheDown atomic.Bool
	srv, client := startServer(t, map[string]grpcserver.Probe{
		"store": func(context.Context) error { return nil },
		"cache": func(context.Context) error {
			if cacheDown.Load() {
				return errors.New("connection refused")
			}
			return nil
		},
	})

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, client, ""))

	require.True(t, srv.Check(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, grpcserver.ServiceName))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, grpcserver.ServiceName+".cache"))

	cacheDown.Store(true)
	require.False(t, srv.Check(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, client, grpcserver.ServiceName+".cache"))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, grpcserver.ServiceName+".store"))
}

func TestHealth_UnknownService(t *testing.T) {
	_, client := startServer(t, nil)
	_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "nope"})
	assert.Error(t, err)
}
