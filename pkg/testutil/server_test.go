package testutil

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func TestServer_Lifecycle(t *testing.T) {
	var intercepted atomic.Int64
	conn, serv, err := NewServer(WithUnaryServerInterceptor(func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		intercepted.Add(1)
		return handler(ctx, req)
	}))
	require.NoError(t, err)

	stop, err := serv.Serve()
	require.NoError(t, err)
	assert.Greater(t, intercepted.Load(), int64(0))

	// Serving twice is a no-op
	_, err = serv.Serve()
	require.NoError(t, err)

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)

	stop()
	stop()

	_, err = serv.Serve()
	assert.Error(t, err)
}

func TestServer_RecoversPanics(t *testing.T) {
	conn, serv, err := NewServer(WithUnaryServerInterceptor(func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if r, ok := req.(*grpc_health_v1.HealthCheckRequest); ok && r.Service == "panic" {
			panic("handler panic")
		}
		return handler(ctx, req)
	}))
	require.NoError(t, err)

	stop, err := serv.Serve()
	require.NoError(t, err)
	defer stop()

	_, err = grpc_health_v1.NewHealthClient(conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: "panic"})
	AssertStatusErrorWithCode(t, err, codes.Internal)
}
