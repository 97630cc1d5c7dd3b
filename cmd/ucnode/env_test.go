package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dep2p/go-ucnode/config"
)

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("UCNODE_LISTEN_ADDRS", "/ip4/0.0.0.0/tcp/4001, /ip4/0.0.0.0/udp/4001/quic-v1")
	t.Setenv("UCNODE_TOPIC", "test-topic")
	t.Setenv("UCNODE_ENABLE_AUTONAT", "false")
	t.Setenv("UCNODE_LOG_LEVEL", "debug")

	cfg := config.NewConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, []string{"/ip4/0.0.0.0/tcp/4001", "/ip4/0.0.0.0/udp/4001/quic-v1"}, cfg.Transport.ListenAddrs)
	assert.Equal(t, "test-topic", cfg.Topic)
	assert.False(t, cfg.AutoNAT.Enable)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnvOverrides_InvalidBoolIgnored(t *testing.T) {
	t.Setenv("UCNODE_ENABLE_AUTONAT", "maybe")

	cfg := config.NewConfig()
	applyEnvOverrides(cfg)
	assert.True(t, cfg.AutoNAT.Enable)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a ,, b "))
}
