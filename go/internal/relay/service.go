package relay

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/woodfish/muyu/go/internal/hits"
)

// Service bundles the hub and its HTTP handler
type Service struct {
	hub       *Hub
	wsHandler *WebSocketHandler
}

// NewService creates a relay service. sink may be nil when hits are not recorded.
func NewService(config Config, sink hits.Sink) *Service {
	hub := NewHub(config, sink)
	return &Service{
		hub:       hub,
		wsHandler: NewWebSocketHandler(hub),
	}
}

// Start runs the hub until ctx is cancelled
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting relay service")
	s.hub.Run(ctx)
}

// RegisterRoutes registers the relay HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("relay routes registered")
}

// Stats returns a registry snapshot
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.hub.Stats(ctx)
}
