package dht

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/testutil"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/protocolids"
	"github.com/dep2p/go-ucnode/pkg/types"
)

func dhtConfig(client bool) config.DHTConfig {
	cfg := config.DefaultDiscoveryConfig().DHT
	cfg.ClientMode = client
	cfg.QueryTimeout = config.Duration(10 * time.Second)
	return cfg
}

func startDHT(t *testing.T, h *testutil.TestHost, client bool) *DHT {
	t.Helper()
	d := New(h, dhtConfig(client), nil)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() { _ = d.Stop() })
	return d
}

func TestMessage_Encoding(t *testing.T) {
	peers := genPeers(t, 1)
	in := &Message{
		Type: MessageFindNode,
		Key:  []byte("key"),
		CloserPeers: []PeerInfo{{
			ID:         peers[0],
			Addrs:      []multiaddr.Multiaddr{multiaddr.StringCast("/ip4/1.2.3.4/tcp/4001")},
			Connection: Connected,
		}},
	}
	var out Message
	require.NoError(t, out.Unmarshal(in.Marshal()))
	assert.Equal(t, MessageFindNode, out.Type)
	assert.Equal(t, []byte("key"), out.Key)
	require.Len(t, out.CloserPeers, 1)
	assert.Equal(t, peers[0], out.CloserPeers[0].ID)
	assert.Equal(t, "/ip4/1.2.3.4/tcp/4001", out.CloserPeers[0].Addrs[0].String())
	assert.Equal(t, Connected, out.CloserPeers[0].Connection)
}

func TestDHT_ProtocolPrefix(t *testing.T) {
	h := testutil.NewHost(t)
	d := New(h, dhtConfig(true), nil)
	assert.Equal(t, types.ProtocolID("/universal-connectivity/kad/1.0.0"), d.Protocol())
	assert.Equal(t, protocolids.DHT("/universal-connectivity"), d.Protocol())
}

func TestDHT_EmptyRoutingTable(t *testing.T) {
	h := testutil.NewHost(t)
	d := startDHT(t, h, true)

	err := d.Bootstrap(context.Background())
	assert.ErrorIs(t, err, ErrEmptyRoutingTable)
	assert.Equal(t, 0, d.RoutingTableSize())
}

func TestDHT_ClientModeRegistersNoHandler(t *testing.T) {
	h := testutil.NewHost(t)
	d := startDHT(t, h, true)
	assert.NotContains(t, h.Protocols(), d.Protocol())

	s := testutil.NewHost(t)
	sd := startDHT(t, s, false)
	assert.Contains(t, s.Protocols(), sd.Protocol())
}

// TestDHT_FindPeer c 只认识 s1；s1 认识 s2；s2 认识 s3
func TestDHT_FindPeer(t *testing.T) {
	c := testutil.NewHost(t)
	s1, s2, s3 := testutil.NewHost(t), testutil.NewHost(t), testutil.NewHost(t)

	cd := startDHT(t, c, true)
	d1 := startDHT(t, s1, false)
	d2 := startDHT(t, s2, false)
	startDHT(t, s3, false)

	testutil.Connect(t, s1, s2)
	testutil.Connect(t, s2, s3)
	testutil.Connect(t, c, s1)

	cd.RoutingTable().Add(s1.ID())
	d1.RoutingTable().Add(s2.ID())
	d2.RoutingTable().Add(s3.ID())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	info, err := cd.FindPeer(ctx, s3.ID())
	require.NoError(t, err)
	assert.Equal(t, s3.ID(), info.ID)
	assert.NotEmpty(t, info.Addrs)

	// 查询成功的服务端节点进入路由表
	assert.True(t, cd.RoutingTable().Contains(s2.ID()))
}

func TestDHT_GetClosestPeers(t *testing.T) {
	c := testutil.NewHost(t)
	s1, s2 := testutil.NewHost(t), testutil.NewHost(t)

	cd := startDHT(t, c, true)
	d1 := startDHT(t, s1, false)
	startDHT(t, s2, false)

	testutil.Connect(t, s1, s2)
	testutil.Connect(t, c, s1)
	cd.RoutingTable().Add(s1.ID())
	d1.RoutingTable().Add(s2.ID())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	peers, err := cd.GetClosestPeers(ctx, c.ID().Bytes())
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.PeerID{s1.ID(), s2.ID()}, peers)
}

func TestDHT_FailedPeerRemoved(t *testing.T) {
	c := testutil.NewHost(t)
	other := testutil.NewHost(t)
	cd := startDHT(t, c, true)

	// other 不运行 DHT，查询失败后被移出路由表
	testutil.Connect(t, c, other)
	cd.RoutingTable().Add(other.ID())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	peers, err := cd.GetClosestPeers(ctx, []byte("anything"))
	require.NoError(t, err)
	assert.Empty(t, peers)
	assert.False(t, cd.RoutingTable().Contains(other.ID()))
}
