package relay

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/core/relay/client"
	"github.com/dep2p/go-ucnode/internal/core/relay/pb"
	"github.com/dep2p/go-ucnode/internal/core/relay/server"
	"github.com/dep2p/go-ucnode/internal/testutil"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/protocolids"
	"github.com/dep2p/go-ucnode/pkg/types"
)

const echoProtocol types.ProtocolID = "/test/echo/1.0.0"

func relayConfig() config.RelayConfig {
	cfg := config.DefaultRelayConfig()
	cfg.EnableHop = true
	cfg.CircuitData = 1 << 20
	return cfg
}

type relayNet struct {
	relay  *testutil.TestHost
	server *server.Server
	a, b   *testutil.TestHost
	ta, tb *client.Transport
}

// setupRelay 创建中继 r，节点 a 在 /p2p-circuit 上监听，a 与 b 都连接到 r
func setupRelay(t *testing.T, cfg config.RelayConfig) *relayNet {
	t.Helper()
	n := &relayNet{relay: testutil.NewHost(t), a: testutil.NewHost(t), b: testutil.NewHost(t)}

	n.server = server.New(n.relay, cfg, nil)
	n.server.Start()
	t.Cleanup(func() { _ = n.server.Stop() })

	n.ta = client.New(n.a, n.a.Upgrader, nil)
	require.NoError(t, n.a.Swarm.AddTransport(n.ta))
	require.NoError(t, n.a.Listen(multiaddr.StringCast("/p2p-circuit")))

	n.tb = client.New(n.b, n.b.Upgrader, nil)
	require.NoError(t, n.b.Swarm.AddTransport(n.tb))

	testutil.Connect(t, n.a, n.relay)
	testutil.Connect(t, n.b, n.relay)
	return n
}

func TestRelay_ReserveAndConnect(t *testing.T) {
	n := setupRelay(t, relayConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := client.Reserve(ctx, n.a, n.relay.ID())
	require.NoError(t, err)
	require.NotEmpty(t, res.Addrs)
	for _, a := range res.Addrs {
		assert.True(t, a.HasProtocol(multiaddr.P_CIRCUIT), a.String())
	}
	assert.True(t, res.Expire.After(time.Now()))
	assert.Equal(t, 1, n.server.Reservations())

	n.a.SetStreamHandler(echoProtocol, func(s pkgif.Stream) {
		defer s.Close()
		_, _ = io.Copy(s, s)
	})

	dest, err := multiaddr.WithP2P(res.Addrs[0], n.a.ID().String())
	require.NoError(t, err)
	c, err := n.b.Swarm.DialAddr(ctx, dest, "")
	require.NoError(t, err)
	assert.Equal(t, n.a.ID(), c.RemotePeer())
	assert.True(t, c.Stat().Transient)

	s, err := n.b.NewStream(ctx, n.a.ID(), echoProtocol)
	require.NoError(t, err)
	_, err = s.Write([]byte("hello via relay"))
	require.NoError(t, err)
	require.NoError(t, s.CloseWrite())
	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "hello via relay", string(got))

	testutil.Eventually(t, 5*time.Second, func() bool {
		return n.a.Swarm.Connected(n.b.ID())
	}, "destination should see the relayed connection")
	assert.Equal(t, 1, n.server.Circuits())
}

func TestRelay_ConnectWithoutReservation(t *testing.T) {
	n := setupRelay(t, relayConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	addr, err := client.CircuitAddr(n.relay.Network().ListenAddresses()[0], n.relay.ID())
	require.NoError(t, err)
	_, err = n.tb.Dial(ctx, addr, n.a.ID())
	require.Error(t, err)

	var se *client.StatusError
	require.True(t, errors.As(err, &se), err.Error())
	assert.Equal(t, pb.StatusNoReservation, se.Status)
}

func TestRelay_ReservationLimit(t *testing.T) {
	cfg := relayConfig()
	cfg.MaxReservations = 1
	n := setupRelay(t, cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := client.Reserve(ctx, n.a, n.relay.ID())
	require.NoError(t, err)

	// 续期不受上限影响
	_, err = client.Reserve(ctx, n.a, n.relay.ID())
	require.NoError(t, err)

	_, err = client.Reserve(ctx, n.b, n.relay.ID())
	var se *client.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, pb.StatusReservationRefused, se.Status)
}

func TestRelay_HopDisabled(t *testing.T) {
	a := testutil.NewHost(t)
	r := testutil.NewHost(t)
	testutil.Connect(t, a, r)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := client.Reserve(ctx, a, r.ID())
	assert.Error(t, err)
}

func TestReservations_PublishesCircuitAddrs(t *testing.T) {
	n := setupRelay(t, relayConfig())
	n.a.Peerstore().SetProtocols(n.relay.ID(), protocolids.RelayHop)

	cfg := relayConfig()
	cfg.DiscoverRelays = 2
	rs := client.NewReservations(n.a, cfg, n.a.Metrics, nil)
	require.NoError(t, rs.Start(context.Background()))

	hasCircuit := func() bool {
		for _, a := range n.a.Book.Snapshot() {
			if a.HasProtocol(multiaddr.P_CIRCUIT) {
				return true
			}
		}
		return false
	}
	testutil.Eventually(t, 10*time.Second, hasCircuit, "circuit address should be published")
	assert.Equal(t, []types.PeerID{n.relay.ID()}, rs.Relays())
	assert.Equal(t, float64(1), promtest.ToFloat64(n.a.Metrics.RelayReservations))

	require.NoError(t, rs.Stop())
	assert.False(t, hasCircuit())
	assert.Equal(t, float64(0), promtest.ToFloat64(n.a.Metrics.RelayReservations))
}

func TestReservations_DropOnDisconnect(t *testing.T) {
	n := setupRelay(t, relayConfig())
	n.a.Peerstore().SetProtocols(n.relay.ID(), protocolids.RelayHop)

	rs := client.NewReservations(n.a, relayConfig(), nil, nil)
	require.NoError(t, rs.Start(context.Background()))
	defer rs.Stop()

	testutil.Eventually(t, 10*time.Second, func() bool {
		return len(rs.Relays()) == 1
	}, "reservation should be held")

	require.NoError(t, n.a.Swarm.ClosePeer(n.relay.ID()))
	testutil.Eventually(t, 10*time.Second, func() bool {
		return len(rs.Relays()) == 0
	}, "reservation should be dropped after disconnect")
}
