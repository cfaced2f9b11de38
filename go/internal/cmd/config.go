package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/woodfish/muyu/go/internal/hits"
	"github.com/woodfish/muyu/go/internal/relay"
)

// HitSink selects where accepted tap batches go for persistence
type HitSink string

const (
	HitSinkNone      HitSink = "none"
	HitSinkPostgres  HitSink = "postgres"
	HitSinkJetStream HitSink = "jetstream"
)

// Config is the optional YAML tuning file. Anything left out keeps its default.
type Config struct {
	Server struct {
		ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
		IdleTimeout       time.Duration `yaml:"idle_timeout"`
		ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
		HealthTimeout     time.Duration `yaml:"health_timeout"`
		AllowedOrigins    []string      `yaml:"allowed_origins"`
	} `yaml:"server"`

	Relay relay.Config `yaml:"relay"`

	Hits struct {
		Sink      HitSink              `yaml:"sink"`
		JetStream hits.JetStreamConfig `yaml:"jetstream"`
	} `yaml:"hits"`
}

func defaultConfig() *Config {
	cfg := &Config{Relay: relay.DefaultConfig()}
	cfg.Server.ReadHeaderTimeout = 10 * time.Second
	cfg.Server.IdleTimeout = 120 * time.Second
	cfg.Server.ShutdownTimeout = 10 * time.Second
	cfg.Server.HealthTimeout = 2 * time.Second
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Hits.Sink = HitSinkPostgres
	cfg.Hits.JetStream = hits.DefaultJetStreamConfig()
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// loadConfig reads path over the defaults, then applies environment overrides.
// An empty path means defaults only.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if sink := os.Getenv("HITS_SINK"); sink != "" {
		config.Hits.Sink = HitSink(sink)
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		config.Hits.JetStream.URL = url
	}
	if n := getEnvAsInt("RELAY_SEND_BUFFER", 0); n > 0 {
		config.Relay.SendBufferSize = n
	}

	if err := config.Relay.Validate(); err != nil {
		return nil, err
	}

	switch config.Hits.Sink {
	case HitSinkNone, HitSinkPostgres, HitSinkJetStream:
	default:
		return nil, fmt.Errorf("unknown hits sink %q", config.Hits.Sink)
	}

	return config, nil
}
