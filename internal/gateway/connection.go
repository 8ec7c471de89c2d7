package gateway

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendQueueSize   int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendQueueSize:   256,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// Connection represents one WebSocket connection to a client device.
// The server loop owns its lifecycle; the registry holds a non-owning
// entry keyed by (userId, deviceId) once the connection has identified
// itself with its first valid message.
type Connection struct {
	ID   string
	Conn *websocket.Conn

	ConnectedAt time.Time
	LastPing    time.Time

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	config    ConnectionConfig

	// key and identified are guarded by the registry's mutex
	key        connKey
	identified bool
}

func newConnection(id string, ws *websocket.Conn, config ConnectionConfig, connectedAt time.Time) *Connection {
	return &Connection{
		ID:          id,
		Conn:        ws,
		ConnectedAt: connectedAt,
		LastPing:    connectedAt,
		send:        make(chan []byte, config.SendQueueSize),
		done:        make(chan struct{}),
		config:      config,
	}
}

// enqueue hands a message to the connection's outbound queue without
// blocking. It reports false when the connection is closed or the queue
// is full, so one stalled device cannot stall fan-out to the rest.
func (c *Connection) enqueue(message []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- message:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// Close tears down the transport. Safe to call multiple times; after the
// first call the connection accepts no more outbound messages.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}

// writePump drains the outbound queue onto the WebSocket and keeps the
// connection alive with periodic pings. One goroutine per connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
			c.LastPing = time.Now()
		}
	}
}
