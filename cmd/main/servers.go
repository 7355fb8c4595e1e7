package main

import (
	"context"

	"portfolio-stream/src/grpc_control"
	"portfolio-stream/src/interfaces"
	"portfolio-stream/src/logger"
	"portfolio-stream/src/metrics"
	"portfolio-stream/src/models"
	"portfolio-stream/src/server"
)

// -----------------------------------------------------------------------------

type runningServers struct {
	servers []interfaces.IServer
	errs    chan error
	logger  *logger.Logger
}

// startServers starts the HTTP/WebSocket server and the gRPC admin server.
// The first server that fails reports on errs.
func startServers(config *models.MConfig, svc interfaces.IStreamService, m *metrics.Metrics, appLogger *logger.Logger) *runningServers {
	rs := &runningServers{
		servers: []interfaces.IServer{
			server.NewHTTPServer(config, svc, m, appLogger.Named("HTTPServer")),
			grpc_control.NewGRPCServer(config, svc, appLogger.Named("ControlService")),
		},
		errs:   make(chan error, 2),
		logger: appLogger,
	}

	for _, srv := range rs.servers {
		go func(srv interfaces.IServer) {
			if err := srv.Start(); err != nil {
				rs.errs <- err
			}
		}(srv)
	}
	return rs
}

// -----------------------------------------------------------------------------

func (rs *runningServers) stop(ctx context.Context) {
	for _, srv := range rs.servers {
		if err := srv.Stop(ctx); err != nil {
			rs.logger.Warning("Server stop: %v", err)
		}
	}
}
