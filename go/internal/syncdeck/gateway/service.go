package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/activebits/go/internal/syncdeck/protocol"
	"github.com/mcdev12/activebits/go/internal/syncdeck/store"
	"github.com/rs/zerolog/log"
)

// Service is the syncdeck gateway: WebSocket sessions, the relay between
// instances and the HTTP state and control endpoints.
type Service struct {
	config            Config
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	relay             Relay
}

// NewService creates a new syncdeck gateway service
func NewService(config Config, sessionStore store.SessionStore, clock clockwork.Clock) (*Service, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if sessionStore == nil {
		sessionStore = store.NewMemoryStore(clock)
	}

	builder := protocol.NewCommandBuilder(clock)
	connectionManager := NewConnectionManager(config.ConnectionConfig, clock, builder, sessionStore)

	var relay Relay
	switch config.Relay {
	case "", RelayLocal:
		relay = NewLocalRelay(connectionManager)
	case RelayNATS:
		js, err := NewJetStreamRelay(connectionManager, config.JetStreamConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream relay: %w", err)
		}
		relay = js
	case RelayRedis:
		rr, err := NewRedisRelay(connectionManager, config.RedisConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis relay: %w", err)
		}
		relay = rr
	default:
		return nil, fmt.Errorf("unknown relay %q", config.Relay)
	}
	connectionManager.relay = relay

	return &Service{
		config:            config,
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		stateHandler:      NewStateHandler(connectionManager, sessionStore),
		relay:             relay,
	}, nil
}

// Start runs the gateway until ctx is cancelled
func (s *Service) Start(ctx context.Context) error {
	log.Info().Str("relay", s.config.Relay).Msg("starting syncdeck gateway service")

	go s.connectionManager.Start(ctx)

	go func() {
		if err := s.relay.Start(ctx); err != nil {
			log.Error().Err(err).Msg("relay failed")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("syncdeck gateway service shutting down")
	return s.Stop()
}

// Stop releases the relay
func (s *Service) Stop() error {
	if err := s.relay.Close(); err != nil {
		return fmt.Errorf("failed to close relay: %w", err)
	}
	log.Info().Msg("syncdeck gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("syncdeck gateway routes registered")
}

// Handler wraps mux with the configured CORS policy
func (s *Service) Handler(mux *http.ServeMux) http.Handler {
	return CORSMiddleware(s.config.AllowedOrigins, mux)
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
