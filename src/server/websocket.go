package server

import (
	"errors"
	"time"

	"portfolio-stream/src/auth"
	"portfolio-stream/src/helpers"
	"portfolio-stream/src/stream"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	reasonAuthRequired = "Authentication required"
	reasonAuthFailed   = "Authentication failed"
)

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

// handleWebSocket upgrades first so a rejected credential can be reported
// with a close code, then hands the connection to the stream service.
func (s *HTTPServer) handleWebSocket(c *gin.Context) {
	token := auth.ExtractToken(c.Request)

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket from %s: %v", c.ClientIP(), err)
		return
	}

	sessionID, err := s.stream.Authenticate(c.Request.Context(), token)
	if err != nil {
		reason := reasonAuthFailed
		if errors.Is(err, helpers.ErrMissingCredential) {
			reason = reasonAuthRequired
		}
		s.Logger.Warning("Rejected WebSocket from %s: %v", c.ClientIP(), err)
		rejectConn(conn, stream.ClosePolicyViolation, reason)
		return
	}

	client := newClient(sessionID, conn, s.stream, s.Config.Stream, s.Logger)
	go client.writePump()

	if !s.stream.Connect(sessionID, client) {
		return
	}
	go client.readPump()
}

// -----------------------------------------------------------------------------

func rejectConn(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait))
	conn.Close()
}
