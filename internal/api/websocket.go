package api

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/optimonitor-core/internal/broadcast"
	"github.com/nerrad567/optimonitor-core/internal/infrastructure/config"
	"github.com/nerrad567/optimonitor-core/internal/infrastructure/logging"
)

// Fallbacks for unset WebSocket configuration.
const (
	defaultSendBuffer   = 64
	defaultPingInterval = 30 * time.Second
	defaultWriteWait    = 10 * time.Second
	defaultReadWait     = defaultPingInterval + defaultWriteWait
)

// errSendBufferFull is returned by Send when a client is not draining its
// queue. The hub drops such clients.
var errSendBufferFull = errors.New("api: websocket send buffer full")

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// WSClient is one streaming subscriber. It implements broadcast.Subscriber
// by queueing frames for its write pump, so a slow socket never blocks a
// broadcast pass.
type WSClient struct {
	hub    *broadcast.Hub
	handle broadcast.Handle
	conn   *websocket.Conn
	logger *logging.Logger
	send   chan []byte

	mu     sync.Mutex
	closed bool
}

// Send queues data for delivery. It fails if the client has been closed or
// its buffer is full.
func (c *WSClient) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return broadcast.ErrSubscriberClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

// Close stops the write pump, which then closes the connection.
// It is safe to call more than once.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
	return nil
}

// handleWebSocket upgrades the HTTP connection and subscribes the client to
// spectral sample broadcasts.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	size := s.wsCfg.SendBuffer
	if size <= 0 {
		size = defaultSendBuffer
	}
	client := &WSClient{
		hub:    s.hub,
		conn:   conn,
		logger: s.logger,
		send:   make(chan []byte, size),
	}

	client.handle = s.hub.Subscribe(client)
	s.logger.Debug("websocket client connected", "subscribers", s.hub.Len())

	// Start read/write pumps
	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump drains inbound frames so control frames are processed. Message
// content is ignored. When the peer goes away the client is unsubscribed.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unsubscribe(c.handle)
		c.Close() //nolint:errcheck // Close never fails
		c.conn.Close()
		c.logger.Debug("websocket client disconnected", "subscribers", c.hub.Len())
	}()

	if cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	}
	readWait := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	if readWait <= 0 {
		readWait = defaultReadWait
	}
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		// Any client message resets the read deadline.
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(readWait))
	}
}

// writePump writes queued frames and keepalive pings to the connection.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}

	for {
		select {
		case message, ok := <-c.send:
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Closed by the hub or by readPump
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
