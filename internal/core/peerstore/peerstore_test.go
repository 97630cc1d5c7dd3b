package peerstore

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-ucnode/internal/core/eventbus"
	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

func newPeer(t *testing.T) (types.PeerID, crypto.PublicKey) {
	t.Helper()
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	id, err := crypto.PeerIDFromPrivateKey(priv)
	require.NoError(t, err)
	return id, pub
}

func addrs(ss ...string) []multiaddr.Multiaddr {
	out := make([]multiaddr.Multiaddr, len(ss))
	for i, s := range ss {
		out[i] = multiaddr.StringCast(s)
	}
	return out
}

func TestPeerstore_AddrsTTL(t *testing.T) {
	mock := clock.NewMock()
	ps, err := New(0, WithClock(mock), WithLogger(log.Discard()))
	require.NoError(t, err)
	p, _ := newPeer(t)

	ps.AddAddrs(p, addrs("/ip4/1.1.1.1/tcp/1"), time.Minute)
	ps.AddAddrs(p, addrs("/ip4/2.2.2.2/tcp/1"), time.Hour)
	assert.Len(t, ps.Addrs(p), 2)

	mock.Add(2 * time.Minute)
	assert.Equal(t, []string{"/ip4/2.2.2.2/tcp/1"}, multiaddr.Strings(ps.Addrs(p)))

	// 已有地址只延长不缩短
	ps.AddAddrs(p, addrs("/ip4/2.2.2.2/tcp/1"), time.Second)
	mock.Add(time.Minute)
	assert.Len(t, ps.Addrs(p), 1)
}

func TestPeerstore_SetAddrs(t *testing.T) {
	ps, err := New(0, WithLogger(log.Discard()))
	require.NoError(t, err)
	p, _ := newPeer(t)

	ps.AddAddrs(p, addrs("/ip4/1.1.1.1/tcp/1"), time.Hour)
	ps.SetAddrs(p, addrs("/ip4/3.3.3.3/tcp/3", "/ip4/3.3.3.3/tcp/3"), time.Hour)
	assert.Equal(t, []string{"/ip4/3.3.3.3/tcp/3"}, multiaddr.Strings(ps.Addrs(p)))

	ps.ClearAddrs(p)
	assert.Empty(t, ps.Addrs(p))
}

func TestPeerstore_Keys(t *testing.T) {
	ps, err := New(0)
	require.NoError(t, err)
	p, pub := newPeer(t)
	other, _ := newPeer(t)

	// identity 编码的 ID 无需记录即可还原公钥
	assert.True(t, crypto.KeyEqual(pub, ps.PubKey(p)))

	assert.ErrorIs(t, ps.AddPubKey(other, pub), ErrKeyMismatch)
	require.NoError(t, ps.AddPubKey(p, pub))
	assert.True(t, crypto.KeyEqual(pub, ps.PubKey(p)))
}

func TestPeerstore_Protocols(t *testing.T) {
	ps, err := New(0)
	require.NoError(t, err)
	p, _ := newPeer(t)

	ps.SetProtocols(p, "/a/1", "/b/1")
	assert.Equal(t, []types.ProtocolID{"/b/1"}, ps.SupportsProtocols(p, "/b/1", "/c/1"))
	assert.Len(t, ps.GetProtocols(p), 2)
}

func TestPeerstore_LRUBound(t *testing.T) {
	ps, err := New(2)
	require.NoError(t, err)
	a, _ := newPeer(t)
	b, _ := newPeer(t)
	c, _ := newPeer(t)

	ps.SetProtocols(a, "/x")
	ps.SetProtocols(b, "/x")
	ps.SetProtocols(c, "/x")

	assert.Len(t, ps.Peers(), 2)
	assert.Empty(t, ps.GetProtocols(a))
}

func TestPeerstore_AddrsChangedEvent(t *testing.T) {
	bus := eventbus.NewBus()
	sub, err := bus.Subscribe(new(types.EvtPeerAddrsChanged))
	require.NoError(t, err)
	defer sub.Close()

	ps, err := New(0, WithEventBus(bus), WithLogger(log.Discard()))
	require.NoError(t, err)
	defer ps.Close()
	p, _ := newPeer(t)

	ps.AddAddrs(p, addrs("/ip4/1.1.1.1/tcp/1"), time.Hour)
	ps.AddAddrs(p, addrs("/ip4/1.1.1.1/tcp/1"), time.Hour) // 无变化

	select {
	case e := <-sub.Out():
		evt := e.(types.EvtPeerAddrsChanged)
		assert.Equal(t, p, evt.Peer)
		assert.Len(t, evt.Addrs, 1)
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
	select {
	case <-sub.Out():
		t.Fatal("unexpected event")
	case <-time.After(20 * time.Millisecond):
	}
}
