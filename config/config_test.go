package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewConfig 测试创建默认配置
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "universal-connectivity", cfg.Topic)
	assert.Equal(t, 10, cfg.Relay.DiscoverRelays)
	assert.Equal(t, "/universal-connectivity", cfg.Discovery.DHT.ProtocolPrefix)
	assert.True(t, cfg.Discovery.DHT.ClientMode)
	assert.Equal(t, 5000, cfg.Discovery.DHT.MaxInboundStreams)
	assert.Equal(t, 1000, cfg.Identify.MaxPushOutgoingStreams)
	assert.Equal(t, 24*time.Hour, cfg.AutoNAT.StartupDelay.Duration())
	assert.True(t, cfg.PubSub.AllowPublishToZeroPeers)
	assert.True(t, cfg.PubSub.IgnoreDuplicatePublishError)
	assert.Equal(t, []string{WebRTCBootstrapNode, WebTransportBootstrapNode}, cfg.Discovery.BootstrapPeers)
	assert.Equal(t, DefaultICEServers, cfg.Transport.ICEServers)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty topic", func(c *Config) { c.Topic = "" }},
		{"negative relays", func(c *Config) { c.Relay.DiscoverRelays = -1 }},
		{"bad dht prefix", func(c *Config) { c.Discovery.DHT.ProtocolPrefix = "kad" }},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }},
		{"bad signature policy", func(c *Config) { c.PubSub.SignaturePolicy = "lax" }},
		{"unknown message id fn", func(c *Config) { c.PubSub.MessageIDFn = "hash" }},
		{"zero dial timeout", func(c *Config) { c.Transport.DialTimeout = 0 }},
		{"backoff inverted", func(c *Config) { c.Discovery.BootstrapMaxBackoff = 1 }},
		{"bad stun server", func(c *Config) { c.AutoNAT.STUNServers = []string{"no-port"} }},
		{"bad blocked cidr", func(c *Config) { c.Gater.BlockedCIDRs = []string{"10.0.0.0/33"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestConfig_ValidateAddresses(t *testing.T) {
	t.Run("bad listen addr", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Transport.ListenAddrs = []string{"/ip4/999.0.0.1/tcp/1"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("bootstrap without peer id", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Discovery.BootstrapPeers = []string{"/ip4/1.2.3.4/tcp/4001"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("dnsaddr bootstrap", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Discovery.BootstrapPeers = []string{"/dnsaddr/bootstrap.example.org"}
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfig_Clone(t *testing.T) {
	cfg := NewConfig()
	c := cfg.Clone()
	c.Transport.ListenAddrs[0] = "/ip4/127.0.0.1/tcp/1"
	c.Discovery.BootstrapPeers = nil
	assert.Equal(t, "/ip4/0.0.0.0/udp/0/quic-v1", cfg.Transport.ListenAddrs[0])
	assert.Len(t, cfg.Discovery.BootstrapPeers, 2)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "node.yaml")
		data := []byte("topic: test-topic\nrelay:\n  discover_relays: 3\nautonat:\n  startup_delay: 5s\n")
		require.NoError(t, os.WriteFile(path, data, 0o600))

		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "test-topic", cfg.Topic)
		assert.Equal(t, 3, cfg.Relay.DiscoverRelays)
		assert.Equal(t, 5*time.Second, cfg.AutoNAT.StartupDelay.Duration())
		assert.True(t, cfg.Transport.EnableQUIC, "未出现的字段保留默认值")
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "node.json")
		data := []byte(`{"topic":"x","pubsub":{"seen_ttl":"30s"},"liveness":{"timeout":1000000000}}`)
		require.NoError(t, os.WriteFile(path, data, 0o600))

		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 30*time.Second, cfg.PubSub.SeenTTL.Duration())
		assert.Equal(t, time.Second, cfg.Liveness.Timeout.Duration())
	})

	t.Run("invalid", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("topic: \"\"\n"), 0o600))
		_, err := LoadFile(path)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("roundtrip", func(t *testing.T) {
		for _, name := range []string{"rt.yaml", "rt.json"} {
			path := filepath.Join(dir, name)
			cfg := NewConfig()
			cfg.Relay.EnableHop = true
			require.NoError(t, cfg.SaveFile(path))
			got, err := LoadFile(path)
			require.NoError(t, err, name)
			assert.Equal(t, cfg, got, name)
		}
	})
}

func TestDuration_YAML(t *testing.T) {
	cfg, err := FromYAML([]byte("liveness:\n  timeout: 250ms\n"))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Liveness.Timeout.Duration())

	_, err = FromYAML([]byte("liveness:\n  timeout: forever\n"))
	assert.Error(t, err)
}
