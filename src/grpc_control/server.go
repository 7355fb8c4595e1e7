package grpc_control

import (
	"context"
	"fmt"
	"net"
	"time"

	"portfolio-stream/src/interfaces"
	"portfolio-stream/src/logger"
	"portfolio-stream/src/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const defaultGrpcPort = 50051

// GRPCServer hosts the admin service.
type GRPCServer struct {
	addr   string
	server *grpc.Server
	Logger *logger.Logger
}

func NewGRPCServer(cfg *models.MConfig, svc interfaces.IStreamService, log *logger.Logger) *GRPCServer {
	port := cfg.GrpcPort
	if port == 0 {
		port = defaultGrpcPort
	}

	srv := grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor(log)))
	RegisterStreamAdminServer(srv, NewControlService(svc, log))

	return &GRPCServer{
		addr:   fmt.Sprintf("%s:%d", cfg.GrpcHost, port),
		server: srv,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

func (g *GRPCServer) Start() error {
	lis, err := net.Listen("tcp", g.addr)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC on %s: %w", g.addr, err)
	}
	return g.Serve(lis)
}

// Serve runs on an existing listener.
func (g *GRPCServer) Serve(lis net.Listener) error {
	g.Logger.Info("Starting gRPC admin server on %s", lis.Addr())
	if err := g.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop drains in-flight calls until ctx expires, then forces the stop.
func (g *GRPCServer) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		g.server.Stop()
		return ctx.Err()
	}
}

// -----------------------------------------------------------------------------

func loggingInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			log.Warning("gRPC %s failed after %v: %s", info.FullMethod, time.Since(start), status.Convert(err).Message())
		} else {
			log.Debug("gRPC %s ok in %v", info.FullMethod, time.Since(start))
		}
		return resp, err
	}
}
