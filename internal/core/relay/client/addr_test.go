package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

const (
	relayID = "12D3KooWSmtsbL2ukwVwf8gDoTYZHnCd7sVNNVdMnCa4MkWjLujm"
	destID  = "12D3KooWDpJ7As7BWAwRMfu1VU2WCqNjvq387JEYKDBj4kx6nXTN"
)

func TestParseCircuitAddr(t *testing.T) {
	tests := []struct {
		name      string
		addr      string
		ok        bool
		withRelay bool
		withDest  bool
	}{
		{"完整地址", "/ip4/1.2.3.4/tcp/4001/p2p/" + relayID + "/p2p-circuit/p2p/" + destID, true, true, true},
		{"无目标", "/ip4/1.2.3.4/tcp/4001/p2p/" + relayID + "/p2p-circuit", true, true, false},
		{"只有中继 ID", "/p2p/" + relayID + "/p2p-circuit/p2p/" + destID, true, false, true},
		{"WebRTC 地址", "/ip4/1.2.3.4/tcp/4001/p2p/" + relayID + "/p2p-circuit/webrtc/p2p/" + destID, false, false, false},
		{"缺少中继 ID", "/ip4/1.2.3.4/tcp/4001/p2p-circuit", false, false, false},
		{"监听地址", "/p2p-circuit", false, false, false},
		{"直连地址", "/ip4/1.2.3.4/tcp/4001", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ca, ok := parseCircuitAddr(multiaddr.StringCast(tt.addr))
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, relayID, ca.relay.String())
			assert.Equal(t, tt.withRelay, ca.relayAddr != nil)
			if tt.withDest {
				assert.Equal(t, destID, ca.dest.String())
			} else {
				assert.Empty(t, ca.dest)
			}
		})
	}
}

func TestCircuitAddr(t *testing.T) {
	relay, err := types.ParsePeerID(relayID)
	require.NoError(t, err)

	got, err := CircuitAddr(multiaddr.StringCast("/ip4/1.2.3.4/udp/4001/quic-v1"), relay)
	require.NoError(t, err)
	assert.Equal(t, "/ip4/1.2.3.4/udp/4001/quic-v1/p2p/"+relayID+"/p2p-circuit", got.String())

	// 已带 /p2p 后缀时不重复
	got, err = CircuitAddr(multiaddr.StringCast("/ip4/1.2.3.4/tcp/4001/p2p/"+relayID), relay)
	require.NoError(t, err)
	assert.Equal(t, "/ip4/1.2.3.4/tcp/4001/p2p/"+relayID+"/p2p-circuit", got.String())
}
