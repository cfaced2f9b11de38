package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/woodfish/muyu/go/internal/dbconfig"
	"github.com/woodfish/muyu/go/internal/hits"
	"github.com/woodfish/muyu/go/internal/hits/recorder"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// configure zerolog console output and level
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// stop on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB config
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("open pgx pool")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("ping database")
	}
	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to database")

	// Hits repository and app
	repo := hits.NewRepository(pool)
	app := hits.NewApp(repo)

	// JetStream consumer
	rcCfg := recorder.DefaultConfig()
	if url := os.Getenv("NATS_URL"); url != "" {
		rcCfg.JetStream.URL = url
	}
	if name := os.Getenv("RECORDER_CONSUMER"); name != "" {
		rcCfg.ConsumerName = name
	}

	consumer, err := recorder.NewConsumer(app, rcCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create hit recorder")
	}
	defer func() {
		if err := consumer.Stop(); err != nil {
			log.Error().Err(err).Msg("stop hit recorder")
		}
	}()

	// run consumer
	errCh := make(chan error, 1)
	go func() {
		errCh <- consumer.Start(ctx)
	}()

	// wait for shutdown or error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
		<-errCh
		log.Info().Msg("graceful shutdown complete")

	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("hit recorder exited unexpectedly")
		}
	}
}
