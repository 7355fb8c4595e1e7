package interfaces

import (
	"context"

	"portfolio-stream/src/models"
)

// -----------------------------------------------------------------------------
// IStreamService is the subscription engine as seen by the transports.
// -----------------------------------------------------------------------------

type IStreamService interface {
	// Authenticate resolves a bearer token to a session ID.
	Authenticate(ctx context.Context, token string) (string, error)

	// Connect registers conn for sessionID, replacing any previous transport.
	// False means the service refused the connection.
	Connect(sessionID string, conn ISessionConn) bool

	// Disconnect tears the session down if conn is still its transport.
	Disconnect(sessionID string, conn ISessionConn) bool

	// HandleMessage processes one inbound control message.
	HandleMessage(sessionID string, conn ISessionConn, data []byte)

	// NotifyRateLimited reports a dropped inbound message to the client.
	NotifyRateLimited(sessionID string, conn ISessionConn)

	// -----------------------------------------------------------------------------

	Stats() models.MStreamStats
	Subscriptions() models.MSubscriptionSnapshot
	SessionIDs() []string
	DisconnectSession(sessionID string) bool
}
