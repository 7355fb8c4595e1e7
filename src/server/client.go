package server

import (
	"sync"
	"time"

	"portfolio-stream/src/helpers"
	"portfolio-stream/src/interfaces"
	"portfolio-stream/src/logger"
	"portfolio-stream/src/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait  = 2 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

// Client is one WebSocket transport. It implements interfaces.ISessionConn.
type Client struct {
	id        string
	sessionID string
	conn      *websocket.Conn
	stream    interfaces.IStreamService
	limiter   *rate.Limiter
	readLimit int64
	Logger    *logger.Logger

	// Buffered so the dispatcher never waits on a slow peer
	send chan []byte
	done chan struct{}

	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

func newClient(sessionID string, conn *websocket.Conn, svc interfaces.IStreamService, cfg models.MStreamConfig, log *logger.Logger) *Client {
	return &Client{
		id:        uuid.NewString(),
		sessionID: sessionID,
		conn:      conn,
		stream:    svc,
		limiter:   rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), cfg.MessageBurst),
		readLimit: cfg.MaxMessageBytes,
		Logger:    log,
		send:      make(chan []byte, cfg.SendBuffer),
		done:      make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------
// ISessionConn
// -----------------------------------------------------------------------------

func (c *Client) ID() string {
	return c.id
}

func (c *Client) Send(payload []byte) error {
	select {
	case <-c.done:
		return helpers.ErrConnectionClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return helpers.ErrConnectionClosed
	default:
		return helpers.ErrSendBufferFull
	}
}

func (c *Client) IsOpen() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Close records the close frame and stops the write pump, which sends it.
func (c *Client) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
	return nil
}

// -----------------------------------------------------------------------------
// readPump - handles incoming control messages
// Acts as the watchdog for the connection
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer func() {
		c.stream.Disconnect(c.sessionID, c)
		_ = c.Close(websocket.CloseNormalClosure, "")
		c.Logger.Debug("Read pump for %s (%s) stopped", c.sessionID, c.id)
	}()

	if c.readLimit > 0 {
		c.conn.SetReadLimit(c.readLimit)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Logger.Info("WebSocket error for %s: %v", c.sessionID, err)
			}
			return
		}

		if !c.limiter.Allow() {
			c.stream.NotifyRateLimited(c.sessionID, c)
			continue
		}
		c.stream.HandleMessage(c.sessionID, c, message)
	}
}

// -----------------------------------------------------------------------------
// writePump - sends queued messages and heartbeats
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(message); err != nil {
				c.Logger.Info("Write error for %s: %v", c.sessionID, err)
				_ = c.Close(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-c.done:
			c.flush()
			if c.closeCode != websocket.CloseAbnormalClosure {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(c.closeCode, c.closeReason),
					time.Now().Add(writeWait))
			}
			return
		}
	}
}

func (c *Client) write(message []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// flush writes whatever was queued before the close.
func (c *Client) flush() {
	for {
		select {
		case message := <-c.send:
			if err := c.write(message); err != nil {
				return
			}
		default:
			return
		}
	}
}
