package relay

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid relay config")

// Config holds configuration for relay websocket connections
type Config struct {
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	MaxMessageSize  int64         `yaml:"max_message_size"`
	ReadBufferSize  int           `yaml:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size"`
	SendBufferSize  int           `yaml:"send_buffer_size"` // Frames queued per connection before eviction
	InboxSize       int           `yaml:"inbox_size"`       // Frames queued for the hub loop
	SinkBufferSize  int           `yaml:"sink_buffer_size"` // Batches queued for the hit sink

	CheckOrigin func(r *http.Request) bool `yaml:"-"`
}

// DefaultConfig returns default relay configuration
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  64 * 1024, // a few thousand taps per frame
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		InboxSize:       1024,
		SinkBufferSize:  1024,
		CheckOrigin: func(r *http.Request) bool {
			// Clients are mobile apps and browsers on arbitrary origins
			return true
		},
	}
}

// Validate rejects settings that would make every connection fail
func (c Config) Validate() error {
	switch {
	case c.SendBufferSize < 1:
		return fmt.Errorf("%w: send_buffer_size must be at least 1, got %d", ErrInvalidConfig, c.SendBufferSize)
	case c.PingInterval <= 0:
		return fmt.Errorf("%w: ping_interval must be positive", ErrInvalidConfig)
	case c.WriteTimeout <= 0:
		return fmt.Errorf("%w: write_timeout must be positive", ErrInvalidConfig)
	case c.ReadTimeout <= c.PingInterval:
		return fmt.Errorf("%w: read_timeout (%s) must exceed ping_interval (%s)", ErrInvalidConfig, c.ReadTimeout, c.PingInterval)
	case c.InboxSize < 0 || c.SinkBufferSize < 0:
		return fmt.Errorf("%w: queue sizes must not be negative", ErrInvalidConfig)
	}
	return nil
}
