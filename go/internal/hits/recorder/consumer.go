package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/woodfish/muyu/go/internal/hits"
)

// errPoison marks messages that can never be processed and must not be redelivered
var errPoison = errors.New("poison message")

// Config holds configuration for the JetStream hit consumer
type Config struct {
	JetStream     hits.JetStreamConfig
	ConsumerName  string
	MaxDeliver    int           // Max delivery attempts
	AckWait       time.Duration // How long to wait for ack
	MaxAckPending int           // Max messages pending ack
}

// DefaultConfig returns default recorder configuration
func DefaultConfig() Config {
	return Config{
		JetStream:     hits.DefaultJetStreamConfig(),
		ConsumerName:  "hit-recorder",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
	}
}

// BatchRecorder is what the consumer needs from the hits app
type BatchRecorder interface {
	RecordBatch(ctx context.Context, batch hits.HitBatch) (int64, error)
}

// Consumer drains the hit stream into Postgres
type Consumer struct {
	recorder BatchRecorder
	nc       *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
	config   Config
}

// NewConsumer connects to NATS and creates or reuses the durable consumer
func NewConsumer(recorder BatchRecorder, config Config) (*Consumer, error) {
	nc, js, err := hits.Connect(config.JetStream)
	if err != nil {
		return nil, err
	}

	c := &Consumer{
		recorder: recorder,
		nc:       nc,
		js:       js,
		config:   config,
	}

	if err := c.ensureConsumer(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}

	return c, nil
}

func (c *Consumer) ensureConsumer(ctx context.Context) error {
	if err := hits.EnsureStream(ctx, c.js, c.config.JetStream); err != nil {
		return fmt.Errorf("ensure stream: %w", err)
	}

	stream, err := c.js.Stream(ctx, c.config.JetStream.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          c.config.ConsumerName,
		Durable:       c.config.ConsumerName,
		Description:   "Persists accepted tap batches as hits",
		FilterSubject: c.config.JetStream.SubjectPrefix + ".>",
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    c.config.MaxDeliver,
		AckWait:       c.config.AckWait,
		MaxAckPending: c.config.MaxAckPending,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	log.Info().
		Str("consumer", c.config.ConsumerName).
		Str("stream", c.config.JetStream.StreamName).
		Msg("hit consumer ready")

	c.consumer = consumer
	return nil
}

// Start consumes until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", c.config.ConsumerName).
		Str("stream", c.config.JetStream.StreamName).
		Msg("starting hit recorder")

	messageCh := make(chan jetstream.Msg, 100)

	consumeCtx, err := c.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("hit recorder shutting down")
			return nil
		case msg := <-messageCh:
			c.settle(msg, c.handle(ctx, msg.Data()))
		}
	}
}

func (c *Consumer) settle(msg jetstream.Msg, err error) {
	switch {
	case err == nil:
		if ackErr := msg.Ack(); ackErr != nil {
			log.Error().Err(ackErr).Msg("failed to ACK message")
		}
	case errors.Is(err, errPoison):
		log.Error().Err(err).Str("subject", msg.Subject()).Msg("dropping unprocessable hit batch")
		if termErr := msg.Term(); termErr != nil {
			log.Error().Err(termErr).Msg("failed to TERM message")
		}
	default:
		log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to record hit batch")
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error().Err(nakErr).Msg("failed to NAK message")
		}
	}
}

// handle decodes and records one message payload
func (c *Consumer) handle(ctx context.Context, data []byte) error {
	var batch hits.HitBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return fmt.Errorf("%w: unmarshal hit batch: %v", errPoison, err)
	}
	if batch.UserID == uuid.Nil {
		return fmt.Errorf("%w: batch from connection %s has no user", errPoison, batch.ConnectionID)
	}
	if len(batch.Clicks) == 0 {
		return nil
	}

	if _, err := c.recorder.RecordBatch(ctx, batch); err != nil {
		return err
	}
	return nil
}

// Stop closes the NATS connection
func (c *Consumer) Stop() error {
	log.Info().Msg("stopping hit recorder")
	if c.nc != nil {
		c.nc.Close()
	}
	return nil
}
