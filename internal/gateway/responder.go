package gateway

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/stockpit/timersync/internal/models"
)

// ActiveTimerProvider is the persistence collaborator: the one read this
// core performs. Ordering of the returned timers is irrelevant.
type ActiveTimerProvider interface {
	ActiveTimers(ctx context.Context, userID string) ([]models.Timer, error)
}

// SyncResponder answers sync_request messages. It is the reconciliation
// path: the only way a (re)connecting device learns about timers it
// missed while offline.
type SyncResponder struct {
	timers ActiveTimerProvider
}

// NewSyncResponder creates a responder backed by the given provider
func NewSyncResponder(timers ActiveTimerProvider) *SyncResponder {
	return &SyncResponder{timers: timers}
}

// HandleSyncRequest fetches the user's active timers and, if there are
// any, sends exactly one timers_sync message to the requesting
// connection only. On a collaborator failure nothing is sent; the client
// treats silence as "no update available yet" and may retry.
func (sr *SyncResponder) HandleSyncRequest(ctx context.Context, userID, deviceID string, conn *Connection) {
	timers, err := sr.timers.ActiveTimers(ctx, userID)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("device_id", deviceID).
			Msg("failed to fetch active timers for sync")
		return
	}

	if len(timers) == 0 {
		log.Debug().
			Str("user_id", userID).
			Str("device_id", deviceID).
			Msg("no active timers to sync")
		return
	}

	data, err := EncodeMessage(&Message{
		Type:   MessageTypeTimersSync,
		Timers: timers,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to encode timers_sync")
		return
	}

	if !conn.enqueue(data) {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("user_id", userID).
			Str("device_id", deviceID).
			Msg("could not deliver timers_sync, connection closed or saturated")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("device_id", deviceID).
		Int("timers", len(timers)).
		Msg("sent timers_sync")
}
