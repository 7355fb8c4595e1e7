package interfaces

import "context"

// -----------------------------------------------------------------------------
// IServer is a long-running listener (HTTP/WebSocket or gRPC).
// -----------------------------------------------------------------------------

type IServer interface {
	// Start blocks until the server stops.
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop(ctx context.Context) error
}
