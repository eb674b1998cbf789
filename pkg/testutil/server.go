package testutil

import (
	"context"
	"net"
	"sync"
	"time"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ovmcloud/ocfs2-manager/pkg/retry"
	"github.com/ovmcloud/ocfs2-manager/pkg/retry/backoff"
)

// Server is a gRPC server on a local port for tests. Handler panics surface
// to clients as codes.Internal.
type Server struct {
	mu         sync.Mutex
	serving    bool
	stopped    bool
	stopOnce   sync.Once
	listener   net.Listener
	grpcServer *grpc.Server
	clientConn *grpc.ClientConn
}

// ServerOption configures a test Server
type ServerOption func(*serverOpts)

type serverOpts struct {
	unaryInterceptors []grpc.UnaryServerInterceptor
}

// WithUnaryServerInterceptor runs i after panic recovery on every unary call
func WithUnaryServerInterceptor(i grpc.UnaryServerInterceptor) ServerOption {
	return func(o *serverOpts) {
		o.unaryInterceptors = append(o.unaryInterceptors, i)
	}
}

// NewServer creates a Server along with a client connection to it. Services
// must be registered before Serve.
func NewServer(opts ...ServerOption) (*grpc.ClientConn, *Server, error) {
	o := serverOpts{
		unaryInterceptors: []grpc.UnaryServerInterceptor{grpc_recovery.UnaryServerInterceptor()},
	}
	for _, opt := range opts {
		opt(&o)
	}

	listener, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return nil, nil, errors.Wrap(err, "error starting listener")
	}

	// Does not block, so the server need not be running yet
	conn, err := grpc.Dial(listener.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		listener.Close()
		return nil, nil, errors.Wrap(err, "error dialing test server")
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(o.unaryInterceptors...)),
		grpc.StreamInterceptor(grpc_recovery.StreamServerInterceptor()),
	)
	grpc_health_v1.RegisterHealthServer(grpcServer, health.NewServer())

	return conn, &Server{
		listener:   listener,
		grpcServer: grpcServer,
		clientConn: conn,
	}, nil
}

// RegisterService exposes the raw grpc.Server for service registration
func (s *Server) RegisterService(register func(s *grpc.Server)) {
	register(s.grpcServer)
}

// Serve starts serving in the background and waits until a health check
// succeeds. stop tears the server and client connection down and is safe to
// call more than once.
func (s *Server) Serve() (stop func(), err error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, errors.New("test server already stopped")
	}
	alreadyServing := s.serving
	s.serving = true
	s.mu.Unlock()

	if !alreadyServing {
		go func() {
			err := s.grpcServer.Serve(s.listener)
			logrus.StandardLogger().WithField("type", "testutil/Server").WithError(err).Debug("stopped serving")
		}()
	}

	_, err = retry.Retry(
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			_, err := grpc_health_v1.NewHealthClient(s.clientConn).Check(ctx, &grpc_health_v1.HealthCheckRequest{})
			return err
		},
		retry.Limit(10),
		retry.Backoff(backoff.Constant(250*time.Millisecond), 250*time.Millisecond),
	)
	if err != nil {
		s.stop()
		return nil, errors.Wrap(err, "test server never became healthy")
	}

	return s.stop, nil
}

func (s *Server) stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()

		s.grpcServer.Stop()
		s.clientConn.Close()
	})
}
