package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woodfish/muyu/go/internal/relay"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("HITS_SINK", "")
	t.Setenv("NATS_URL", "")

	config, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, HitSinkPostgres, config.Hits.Sink)
	assert.Equal(t, 256, config.Relay.SendBufferSize)
	assert.NotNil(t, config.Relay.CheckOrigin)
	assert.Equal(t, "MUYU_HITS", config.Hits.JetStream.StreamName)
	assert.Equal(t, 2*time.Second, config.Server.HealthTimeout)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "muyu.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  shutdown_timeout: 3s
relay:
  ping_interval: 15s
  send_buffer_size: 32
hits:
  sink: jetstream
  jetstream:
    subject_prefix: temple.hits
`), 0o600))

	t.Setenv("HITS_SINK", "")
	t.Setenv("NATS_URL", "nats://broker:4222")

	config, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, config.Server.ShutdownTimeout)
	assert.Equal(t, 15*time.Second, config.Relay.PingInterval)
	assert.Equal(t, 32, config.Relay.SendBufferSize)
	assert.Equal(t, 10*time.Second, config.Relay.WriteTimeout, "unset fields keep defaults")
	assert.Equal(t, HitSinkJetStream, config.Hits.Sink)
	assert.Equal(t, "temple.hits", config.Hits.JetStream.SubjectPrefix)
	assert.Equal(t, "MUYU_HITS", config.Hits.JetStream.StreamName)
	assert.Equal(t, "nats://broker:4222", config.Hits.JetStream.URL)
}

func TestLoadConfigRejectsUnknownSink(t *testing.T) {
	t.Setenv("HITS_SINK", "kafka")
	_, err := loadConfig("")
	assert.Error(t, err)
}

func TestLoadConfigRejectsUnusableRelaySettings(t *testing.T) {
	t.Setenv("HITS_SINK", "")
	t.Setenv("RELAY_SEND_BUFFER", "")

	testCases := []struct {
		name string
		yaml string
	}{
		{"zero send buffer", "relay:\n  send_buffer_size: 0\n"},
		{"zero ping interval", "relay:\n  ping_interval: 0s\n"},
		{"read timeout below ping", "relay:\n  read_timeout: 10s\n  ping_interval: 30s\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "muyu.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.yaml), 0o600))

			_, err := loadConfig(path)
			assert.ErrorIs(t, err, relay.ErrInvalidConfig)
		})
	}

	t.Run("env override repairs the file", func(t *testing.T) {
		t.Setenv("RELAY_SEND_BUFFER", "16")
		path := filepath.Join(t.TempDir(), "muyu.yaml")
		require.NoError(t, os.WriteFile(path, []byte("relay:\n  send_buffer_size: 0\n"), 0o600))

		config, err := loadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 16, config.Relay.SendBufferSize)
	})
}
