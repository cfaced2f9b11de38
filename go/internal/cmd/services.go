package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/woodfish/muyu/go/internal/health"
	"github.com/woodfish/muyu/go/internal/hits"
	"github.com/woodfish/muyu/go/internal/relay"
	"github.com/woodfish/muyu/go/internal/rooms"
	roomsdb "github.com/woodfish/muyu/go/internal/rooms/db"
)

type Services struct {
	Relay *relay.Service
	Rooms *rooms.Service
	Hits  *hits.Service

	Health *health.Checker

	closers []func() error
}

// Close releases broker connections opened for the services
func (s *Services) Close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			log.Error().Err(err).Msg("failed to close service dependency")
		}
	}
}

func setupServices(config *Config, database *sql.DB, pool *pgxpool.Pool) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → Service layer
	services := &Services{
		Health: health.NewChecker(config.Server.HealthTimeout).
			Add("database", health.SQL(database)).
			Add("pool", health.Pool(pool)),
	}

	// Rooms
	roomQueries := roomsdb.New(database)
	roomsRepo := rooms.NewRepository(roomQueries)
	roomsApp := rooms.NewApp(roomsRepo)
	services.Rooms = rooms.NewService(roomsApp)

	// Hits
	hitsRepo := hits.NewRepository(pool)
	hitsApp := hits.NewApp(hitsRepo)
	services.Hits = hits.NewService(hitsApp)

	// Relay, with accepted batches forwarded to the configured sink
	var sink hits.Sink
	switch config.Hits.Sink {
	case HitSinkPostgres:
		sink = hitsApp
	case HitSinkJetStream:
		publisher, err := hits.NewJetStreamPublisher(config.Hits.JetStream)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream publisher: %w", err)
		}
		services.closers = append(services.closers, publisher.Close)
		services.Health.Add("nats", health.Broker(publisher))
		sink = publisher
	}
	log.Info().Str("sink", string(config.Hits.Sink)).Msg("hit sink configured")

	services.Relay = relay.NewService(config.Relay, sink)
	services.Health.Add("relay", func(ctx context.Context) error {
		_, err := services.Relay.Stats(ctx)
		return err
	})

	return services, nil
}
