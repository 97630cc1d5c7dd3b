package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-ucnode/internal/core/addrbook"
	"github.com/dep2p/go-ucnode/internal/core/eventbus"
	"github.com/dep2p/go-ucnode/internal/core/host"
	"github.com/dep2p/go-ucnode/internal/core/metrics"
	"github.com/dep2p/go-ucnode/internal/core/peerstore"
	"github.com/dep2p/go-ucnode/internal/core/security/noise"
	"github.com/dep2p/go-ucnode/internal/core/swarm"
	"github.com/dep2p/go-ucnode/internal/core/transport/tcp"
	"github.com/dep2p/go-ucnode/internal/core/upgrader"
	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// TestHost 测试用 Host 及其依赖
type TestHost struct {
	*host.Host

	Priv     crypto.PrivateKey
	Swarm    *swarm.Swarm
	Book     *addrbook.Book
	Bus      *eventbus.Bus
	Metrics  *metrics.Metrics
	Upgrader *upgrader.Upgrader
}

// NewHost 创建只启用 TCP 的 Host，并监听 127.0.0.1 随机端口
//
// 测试结束时自动关闭。
func NewHost(t *testing.T) *TestHost {
	t.Helper()

	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	id, err := crypto.PeerIDFromPrivateKey(priv)
	require.NoError(t, err)
	sec, err := noise.New(priv, nil)
	require.NoError(t, err)

	bus := eventbus.NewBus()
	ps, err := peerstore.New(0, peerstore.WithEventBus(bus))
	require.NoError(t, err)
	book, err := addrbook.New(id, bus, nil)
	require.NoError(t, err)
	m := metrics.New("test")

	sw := swarm.New(id, ps, swarm.WithEventBus(bus), swarm.WithMetrics(m))
	up := upgrader.New(sec, 5*time.Second, nil)
	tr := tcp.New(up, 5*time.Second, nil)
	require.NoError(t, sw.AddTransport(tr))

	h := host.New(sw, bus, book, nil)
	require.NoError(t, h.Listen(multiaddr.StringCast("/ip4/127.0.0.1/tcp/0")))

	t.Cleanup(func() {
		_ = h.Close()
		_ = tr.Close()
		_ = book.Close()
		_ = ps.Close()
	})
	return &TestHost{Host: h, Priv: priv, Swarm: sw, Book: book, Bus: bus, Metrics: m, Upgrader: up}
}

// Info 返回 Host 的监听地址信息
func (h *TestHost) Info() types.AddrInfo {
	return types.AddrInfo{ID: h.ID(), Addrs: h.Network().ListenAddresses()}
}

// Connect 从 a 连接到 b
func Connect(t *testing.T, a, b *TestHost) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Connect(ctx, b.Info()))
}
