package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Handler owns the per-connection lifecycle: upgrade, identification,
// message dispatch and teardown. Each connection moves through
// connecting -> identified -> active -> closed; the first valid message
// registers the connection before its semantic effect is dispatched, so
// a device can never miss a broadcast in the gap between connecting and
// issuing its own sync_request.
type Handler struct {
	registry    *Registry
	broadcaster *Broadcaster
	responder   *SyncResponder
	upgrader    websocket.Upgrader
	config      ConnectionConfig
	clock       clockwork.Clock
}

// NewHandler creates the WebSocket handler for timer sync connections
func NewHandler(registry *Registry, broadcaster *Broadcaster, responder *SyncResponder, config ConnectionConfig, clock clockwork.Clock) *Handler {
	return &Handler{
		registry:    registry,
		broadcaster: broadcaster,
		responder:   responder,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
		clock:  clock,
	}
}

// statusResponse is the reply to non-upgrade requests on the sync endpoint
type statusResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
}

// HandleSync serves the sync endpoint. WebSocket upgrade requests become
// live sync connections; plain HTTP requests get a liveness summary.
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		h.handleStatus(w, r)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	conn := newConnection(uuid.New().String(), ws, h.config, h.clock.Now())

	log.Info().
		Str("connection_id", conn.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	go conn.writePump()
	h.readLoop(r, conn)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(statusResponse{
		Status:      "ok",
		Connections: h.registry.Count(),
	}); err != nil {
		log.Error().Err(err).Msg("failed to write status response")
	}
}

// readLoop pulls inbound messages sequentially and dispatches them.
// Messages from one device are processed in arrival order; there is no
// ordering across devices.
func (h *Handler) readLoop(r *http.Request, conn *Connection) {
	defer func() {
		h.registry.Unregister(conn)
		conn.Close()
		log.Info().Str("connection_id", conn.ID).Msg("WebSocket connection closed")
	}()

	conn.Conn.SetReadLimit(h.config.MaxMessageSize)
	conn.Conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
		conn.LastPing = time.Now()
		return nil
	})

	registered := false
	for {
		_, data, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", conn.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}
		conn.Conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))

		msg, err := DecodeMessage(data)
		if err != nil {
			var decodeErr *DecodeError
			if errors.As(err, &decodeErr) {
				log.Warn().
					Str("connection_id", conn.ID).
					Str("reason", decodeErr.Reason).
					Msg("rejected inbound message")
				conn.enqueue(encodeErrorMessage(decodeErr.Reason))
				continue
			}
			return
		}

		// Connections are anonymous until their first valid message
		if !registered {
			if superseded := h.registry.Register(msg.UserID, msg.DeviceID, conn); superseded != nil {
				log.Info().
					Str("connection_id", superseded.ID).
					Str("user_id", msg.UserID).
					Str("device_id", msg.DeviceID).
					Msg("closing superseded connection")
				superseded.Close()
			}
			registered = true
		}

		h.dispatch(r, conn, msg)
	}
}

// dispatch routes a decoded message to the sync responder or the
// broadcast engine
func (h *Handler) dispatch(r *http.Request, conn *Connection, msg *Message) {
	switch msg.Type {
	case MessageTypeSyncRequest:
		// Run on its own goroutine so a slow persistence read stalls
		// only this sync response, never the read loop or the registry.
		// The request context cancels the read if the transport closes.
		go h.responder.HandleSyncRequest(r.Context(), msg.UserID, msg.DeviceID, conn)

	case MessageTypeTimerStarted, MessageTypeTimerUpdated, MessageTypeTimerCompleted:
		h.broadcaster.Broadcast(msg)

	default:
		// Decode already filters types; this only guards new inbound
		// types being added without a dispatch arm.
		conn.enqueue(encodeErrorMessage("unsupported message type"))
	}
}
