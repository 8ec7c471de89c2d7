package gateway

import (
	"github.com/rs/zerolog/log"
)

// Broadcaster fans state-changing timer events out to every other device
// belonging to the same user. Delivery is best-effort and at-most-once:
// no acks, no retries. Receivers dedupe by timer id + updatedAt, so a
// duplicate delivery is harmless.
type Broadcaster struct {
	registry *Registry
}

// NewBroadcaster creates a broadcaster over the given registry
func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// Broadcast sends the event to all of the sender's other registered
// devices. The originating device never receives its own event back. A
// failed or saturated recipient is unregistered and closed without
// aborting delivery to the rest. Returns the number of devices reached.
func (b *Broadcaster) Broadcast(msg *Message) int {
	data, err := EncodeMessage(msg)
	if err != nil {
		log.Error().Err(err).Str("type", string(msg.Type)).Msg("failed to encode broadcast event")
		return 0
	}

	recipients := b.registry.OtherDevices(msg.UserID, msg.DeviceID)

	sent := 0
	for _, conn := range recipients {
		if conn.enqueue(data) {
			sent++
			continue
		}

		// Connection is slow or dead, drop it
		log.Warn().
			Str("connection_id", conn.ID).
			Str("user_id", msg.UserID).
			Msg("send queue full or connection closed, dropping connection")
		b.registry.Unregister(conn)
		conn.Close()
	}

	log.Debug().
		Str("type", string(msg.Type)).
		Str("user_id", msg.UserID).
		Str("origin_device_id", msg.DeviceID).
		Int("recipients", sent).
		Msg("event broadcast")

	return sent
}
