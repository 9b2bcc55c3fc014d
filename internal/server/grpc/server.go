// Package grpc exposes the standard gRPC health service for the server. Its
// statuses follow the dependency checks of the health package.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/bigdatakeeper/internal/logging"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/health"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported for the whole server.
const ServiceName = "bigdatakeeper.BigDataKeeper"

const defaultWatchInterval = 15 * time.Second

// Watcher produces health reports until ctx ends.
type Watcher interface {
	Watch(ctx context.Context, interval time.Duration, fn func(health.Report))
}

type GRPCServer struct {
	address  string
	watcher  Watcher
	interval time.Duration
	health   *grpchealth.Server
	logger   logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, w Watcher, interval time.Duration) *GRPCServer {
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	return &GRPCServer{
		address:  a,
		watcher:  w,
		interval: interval,
		health:   grpchealth.NewServer(),
		logger:   l.With("module", "grpc_server"),
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on l until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, l net.Listener) error {

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.loggingInterceptor),
		grpc.ChainStreamInterceptor(s.streamLoggingInterceptor),
	)
	healthpb.RegisterHealthServer(srv, s.health)

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if s.watcher != nil {
		go s.watcher.Watch(watchCtx, s.interval, s.apply)
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gPRC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", l.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(l); err != nil {
		return err
	}

	return nil
}
