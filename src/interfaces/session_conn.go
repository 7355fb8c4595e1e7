package interfaces

// -----------------------------------------------------------------------------
// ISessionConn is the transport handle of one live session.
// -----------------------------------------------------------------------------

type ISessionConn interface {
	// ID is unique per transport, so a replaced connection can be told apart
	// from its successor for the same user.
	ID() string

	// Send queues an encoded message without waiting for the peer. It fails
	// when the connection is closed or its buffer is full.
	Send(payload []byte) error

	// IsOpen reports whether Send can still succeed.
	IsOpen() bool

	// Close sends a close frame with code and reason. Safe to call repeatedly.
	Close(code int, reason string) error
}
