package ucnode

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/testutil"
	"github.com/dep2p/go-ucnode/internal/testutil/mocks"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// testConfig 只用本地 TCP，不访问外网
func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.AutoNAT.Enable = false
	cfg.AutoNAT.EnableSTUN = false
	cfg.Discovery.BootstrapPeers = nil
	cfg.PubSub.HeartbeatInterval = config.Duration(100 * time.Millisecond)
	return cfg
}

func newTestNode(t *testing.T, opts ...Option) *Node {
	t.Helper()
	base := []Option{
		WithConfig(testConfig()),
		WithLogger(log.Discard()),
		WithTransports(TransportTCP),
		WithListenAddrs("/ip4/127.0.0.1/tcp/0"),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	n, err := New(ctx, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func randomPeerID(t *testing.T) types.PeerID {
	t.Helper()
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	id, err := crypto.PeerIDFromPrivateKey(priv)
	require.NoError(t, err)
	return id
}

// closedPort 返回一个当前无人监听的本地端口
func closedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func p2pAddr(t *testing.T, n *Node) multiaddr.Multiaddr {
	t.Helper()
	addrs := n.Host().Network().ListenAddresses()
	require.NotEmpty(t, addrs)
	return withPeer(t, addrs[0], n.ID())
}

func withPeer(t *testing.T, addr multiaddr.Multiaddr, id types.PeerID) multiaddr.Multiaddr {
	t.Helper()
	m, err := multiaddr.NewMultiaddr(addr.String() + "/p2p/" + id.String())
	require.NoError(t, err)
	return m
}

func tcpAddr(port int) multiaddr.Multiaddr {
	return multiaddr.StringCast("/ip4/127.0.0.1/tcp/" + strconv.Itoa(port))
}

// ════════════════════════════════════════════════════════════════════════════
//                              组装
// ════════════════════════════════════════════════════════════════════════════

func TestNew_UnreachableBootstrap(t *testing.T) {
	addr := withPeer(t, tcpAddr(closedPort(t)), randomPeerID(t))

	n := newTestNode(t, WithBootstrapPeers(addr.String()))

	assert.Equal(t, ChatTopic, n.Topic())
	assert.Equal(t, ChatTopic, n.Subscription().Topic())
	assert.Equal(t, []string{ChatTopic}, n.PubSub().GetTopics())
	assert.NotEmpty(t, n.Addrs())

	// 没有订阅对端时发布不报错
	assert.NoError(t, n.Publish(context.Background(), []byte("hello")))
}

func TestNew_AssemblyErrors(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"no transports", []Option{WithTransports()}},
		{"bootstrap without peer id", []Option{WithBootstrapPeers("/ip4/127.0.0.1/tcp/4001")}},
		{"malformed bootstrap", []Option{WithBootstrapPeers("not-an-address")}},
		{"malformed listen address", []Option{WithListenAddrs("/ip4/127.0.0.1/tcp/notaport")}},
		{"unknown transport", []Option{WithTransports("carrier-pigeon")}},
		{"listen failure", []Option{WithListenAddrs("/ip4/203.0.113.1/tcp/4001")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]Option{
				WithConfig(testConfig()),
				WithLogger(log.Discard()),
				WithTransports(TransportTCP),
				WithListenAddrs("/ip4/127.0.0.1/tcp/0"),
			}, tt.opts...)

			n, err := New(context.Background(), opts...)
			require.Error(t, err)
			assert.Nil(t, n)
			assert.ErrorIs(t, err, ErrAssembly)

			var ae *AssemblyError
			require.True(t, errors.As(err, &ae))
			assert.NotEmpty(t, ae.Stage)
			assert.NotNil(t, ae.Unwrap())
		})
	}
}

func TestNew_WithIdentity(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	want, err := crypto.PeerIDFromPrivateKey(priv)
	require.NoError(t, err)

	n := newTestNode(t, WithIdentity(priv))
	assert.Equal(t, want, n.ID())
}

func TestNew_WithMetricsRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	n := newTestNode(t, WithMetricsRegistry(reg))

	require.NoError(t, n.Publish(context.Background(), []byte("x")))
	assert.Same(t, reg, n.Metrics().Registry)
	assert.Equal(t, 1.0, promtest.ToFloat64(n.Metrics().GossipPublished.WithLabelValues(ChatTopic)))
}

func TestNode_Close(t *testing.T) {
	n := newTestNode(t)

	require.NoError(t, n.Close())
	require.NoError(t, n.Close())

	assert.ErrorIs(t, n.Publish(context.Background(), []byte("x")), ErrNodeClosed)
	_, err := n.Dial(context.Background(), multiaddr.StringCast("/ip4/127.0.0.1/tcp/1"))
	assert.ErrorIs(t, err, ErrDial)
	assert.ErrorIs(t, err, ErrNodeClosed)
}

// ════════════════════════════════════════════════════════════════════════════
//                              地址观察者
// ════════════════════════════════════════════════════════════════════════════

func TestNode_DerivesWebRTCAddrs(t *testing.T) {
	n := newTestNode(t)
	assert.Empty(t, n.WebRTCAddrs(), "no relay addresses yet")

	relay := randomPeerID(t)
	circuit := multiaddr.StringCast("/ip4/198.51.100.7/tcp/4001/p2p/" + relay.String() + "/p2p-circuit")
	set := append(n.book.Snapshot(), circuit)
	require.True(t, n.book.Update(set))

	want := circuit.String() + "/webrtc/p2p/" + n.ID().String()
	testutil.Eventually(t, 5*time.Second, func() bool {
		got := n.WebRTCAddrs()
		return len(got) == 1 && got[0].String() == want
	}, "webrtc address not derived")
}

func TestNode_WebRTCAddrsFollowLatestAddresses(t *testing.T) {
	n := newTestNode(t)
	listen := n.book.Snapshot()

	relay := randomPeerID(t)
	circuit := multiaddr.StringCast("/ip4/198.51.100.7/tcp/4001/p2p/" + relay.String() + "/p2p-circuit")
	require.True(t, n.book.Update(append(append([]multiaddr.Multiaddr(nil), listen...), circuit)))
	testutil.Eventually(t, 5*time.Second, func() bool {
		return len(n.WebRTCAddrs()) == 1
	}, "webrtc address not derived")

	require.True(t, n.book.Update(listen))
	testutil.Eventually(t, 5*time.Second, func() bool {
		return len(n.WebRTCAddrs()) == 0
	}, "webrtc address not withdrawn")

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, n.WebRTCAddrs())
}

// ════════════════════════════════════════════════════════════════════════════
//                              拨号
// ════════════════════════════════════════════════════════════════════════════

func TestDial_NonListeningAddress(t *testing.T) {
	n := newTestNode(t)
	addr := withPeer(t, tcpAddr(closedPort(t)), randomPeerID(t))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := Dial(ctx, n, addr)
	require.Error(t, err)
	assert.Nil(t, conn)
	assert.ErrorIs(t, err, ErrDial)

	var de *DialError
	require.True(t, errors.As(err, &de))
	assert.True(t, de.Addr.Equal(addr))
	assert.NotNil(t, de.Cause)
	assert.Contains(t, err.Error(), addr.String())
}

func TestDial_Connects(t *testing.T) {
	a, b := newTestNode(t), newTestNode(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := Dial(ctx, a, p2pAddr(t, b))
	require.NoError(t, err)

	assert.Equal(t, b.ID(), conn.RemotePeer)
	assert.Equal(t, types.DirOutbound, conn.Direction)
	assert.False(t, conn.Transient)
	assert.NotNil(t, conn.LocalAddr)
	assert.NotNil(t, conn.RemoteAddr)
	assert.Contains(t, a.Peers(), b.ID())
}

func TestDial_WithoutPeerID(t *testing.T) {
	a, b := newTestNode(t), newTestNode(t)
	addrs := b.Host().Network().ListenAddresses()
	require.NotEmpty(t, addrs)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := a.Dial(ctx, addrs[0])
	require.NoError(t, err)
	assert.Equal(t, b.ID(), conn.RemotePeer)
}

func TestNodes_ExchangeMessages(t *testing.T) {
	a, b := newTestNode(t), newTestNode(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := a.Dial(ctx, p2pAddr(t, b))
	require.NoError(t, err)

	testutil.Eventually(t, 5*time.Second, func() bool {
		return len(a.PubSub().ListPeers(ChatTopic)) == 1
	}, "b never announced its subscription")

	require.NoError(t, a.Publish(ctx, []byte("hello from a")))

	msg, err := b.Subscription().Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello from a"), msg.Data)
	assert.Equal(t, a.ID(), msg.From)
	assert.Equal(t, ChatTopic, msg.Topic)
}

func TestDial_BlockedPeer(t *testing.T) {
	b := newTestNode(t)

	cfg := testConfig()
	cfg.Gater.BlockedPeers = []string{b.ID().String()}
	a := newTestNode(t, WithConfig(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := a.Dial(ctx, p2pAddr(t, b))
	assert.ErrorIs(t, err, ErrDial)
	assert.NotContains(t, a.Peers(), b.ID())
}

func TestNew_WithFxOptions(t *testing.T) {
	mock := mocks.NewMockDiscovery("mock")
	n := newTestNode(t, WithFxOptions(
		fx.Provide(fx.Annotate(
			func() pkgif.DiscoveryMechanism { return mock },
			fx.ResultTags(`group:"discovery"`),
		)),
		fx.Invoke(func(lc fx.Lifecycle) {
			lc.Append(fx.StartStopHook(mock.Start, mock.Stop))
		}),
	))

	assert.ElementsMatch(t, []string{"bootstrap", "dht", "mdns", "mock"}, n.Discovery())
	assert.Equal(t, 1, mock.StartCalls())

	require.NoError(t, n.Close())
	assert.Equal(t, 1, mock.StopCalls())
}
