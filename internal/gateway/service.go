package gateway

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Service bundles the sync core: connection registry, protocol codec,
// broadcast engine, sync responder and the WebSocket server loop.
type Service struct {
	registry    *Registry
	broadcaster *Broadcaster
	responder   *SyncResponder
	handler     *Handler
}

// Config holds configuration for the timer sync gateway
type Config struct {
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// NewService creates a timer sync gateway backed by the given
// persistence collaborator
func NewService(config Config, timers ActiveTimerProvider) *Service {
	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry)
	responder := NewSyncResponder(timers)
	handler := NewHandler(registry, broadcaster, responder, config.ConnectionConfig, clockwork.NewRealClock())

	return &Service{
		registry:    registry,
		broadcaster: broadcaster,
		responder:   responder,
		handler:     handler,
	}
}

// RegisterRoutes registers the sync endpoint on the mux
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/sync", s.handler.HandleSync)
	log.Info().Msg("timer sync routes registered")
}

// Start blocks until ctx is cancelled, then tears down every live
// connection
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("timer sync gateway started")
	<-ctx.Done()

	log.Info().Msg("timer sync gateway shutting down")
	s.registry.CloseAll()
	return nil
}

// Stats returns a summary of the gateway's live connections
func (s *Service) Stats() map[string]interface{} {
	return map[string]interface{}{
		"service":           "timer-sync-gateway",
		"total_connections": s.registry.Count(),
	}
}
