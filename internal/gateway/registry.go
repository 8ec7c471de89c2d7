package gateway

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// connKey identifies the single live connection a device may hold
type connKey struct {
	userID   string
	deviceID string
}

// Registry tracks one live connection per (userId, deviceId) pair. It is
// the source of truth for who is online within this process. All state is
// guarded by one mutex so registration, removal and listing are
// linearizable with respect to each other.
//
// The registry is process-local: with multiple server processes the
// broadcast domain fragments and devices on different processes will not
// see each other's events. Bridging that requires an external pub/sub
// layer, which is not part of this core.
type Registry struct {
	mu          sync.Mutex
	connections map[connKey]*Connection
}

// NewRegistry creates an empty connection registry
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[connKey]*Connection),
	}
}

// Register inserts or replaces the entry for (userID, deviceID) and
// returns the superseded connection, if any. The caller is responsible
// for closing the superseded transport; the registry only does
// bookkeeping. The key is stored on the connection so Unregister is a
// keyed delete rather than a scan.
func (r *Registry) Register(userID, deviceID string, conn *Connection) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := connKey{userID: userID, deviceID: deviceID}
	old := r.connections[key]
	if old == conn {
		return nil
	}

	conn.key = key
	conn.identified = true
	r.connections[key] = conn

	log.Debug().
		Str("connection_id", conn.ID).
		Str("user_id", userID).
		Str("device_id", deviceID).
		Bool("superseded", old != nil).
		Msg("connection registered")

	return old
}

// Unregister removes the entry for conn if it is still the registered
// connection for its key. Idempotent: a repeat call, or a call for a
// connection that was already superseded, is a no-op.
func (r *Registry) Unregister(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !conn.identified {
		return
	}

	current, ok := r.connections[conn.key]
	if !ok || current != conn {
		return
	}

	delete(r.connections, conn.key)

	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", conn.key.userID).
		Str("device_id", conn.key.deviceID).
		Msg("connection unregistered")
}

// OtherDevices returns a snapshot of every live connection for the user
// except the one identified by excludeDeviceID. No ordering guarantee.
func (r *Registry) OtherDevices(userID, excludeDeviceID string) []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	var conns []*Connection
	for key, conn := range r.connections {
		if key.userID != userID || key.deviceID == excludeDeviceID {
			continue
		}
		conns = append(conns, conn)
	}
	return conns
}

// Lookup returns the registered connection for (userID, deviceID), if any
func (r *Registry) Lookup(userID, deviceID string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[connKey{userID: userID, deviceID: deviceID}]
	return conn, ok
}

// Count returns the number of registered connections
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.connections)
}

// CloseAll closes every registered connection and empties the registry.
// Used at server shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		conns = append(conns, conn)
	}
	r.connections = make(map[connKey]*Connection)
	r.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}

	log.Info().Int("connections", len(conns)).Msg("registry closed all connections")
}
