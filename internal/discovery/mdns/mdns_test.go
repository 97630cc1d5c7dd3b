package mdns

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/testutil"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
)

func enabledConfig() config.MDNSConfig {
	cfg := config.DefaultDiscoveryConfig().MDNS
	cfg.Enable = true
	return cfg
}

func TestTXTRecords_RoundTrip(t *testing.T) {
	h := testutil.NewHost(t)
	addrs := []multiaddr.Multiaddr{
		multiaddr.StringCast("/ip4/192.168.1.10/tcp/4001"),
		multiaddr.StringCast("/ip4/192.168.1.10/udp/4001/quic-v1"),
	}

	txt := buildTXTRecords(h.ID(), addrs)
	require.Len(t, txt, 2)
	assert.Equal(t, "dnsaddr=/ip4/192.168.1.10/tcp/4001/p2p/"+h.ID().String(), txt[0])

	info, ok := parseTXTRecords(append([]string{"unrelated=1", "dnsaddr=garbage"}, txt...))
	require.True(t, ok)
	assert.Equal(t, h.ID(), info.ID)
	require.Len(t, info.Addrs, 2)
	assert.True(t, info.Addrs[1].Equal(addrs[1]))
}

func TestTXTRecords_MixedPeers(t *testing.T) {
	a, b := testutil.NewHost(t), testutil.NewHost(t)
	addr := multiaddr.StringCast("/ip4/10.0.0.1/tcp/1")

	fields := append(buildTXTRecords(a.ID(), []multiaddr.Multiaddr{addr}), buildTXTRecords(b.ID(), []multiaddr.Multiaddr{addr})...)
	info, ok := parseTXTRecords(fields)
	require.True(t, ok)
	assert.Equal(t, a.ID(), info.ID)
	assert.Len(t, info.Addrs, 1)

	_, ok = parseTXTRecords([]string{"dnsaddr=/ip4/10.0.0.1/tcp/1"})
	assert.False(t, ok, "address without peer id")
}

func TestLANAddrs(t *testing.T) {
	addrs := []multiaddr.Multiaddr{
		multiaddr.StringCast("/ip4/127.0.0.1/tcp/4001"),
		multiaddr.StringCast("/ip4/192.168.1.10/tcp/4001"),
		multiaddr.StringCast("/ip4/8.8.8.8/tcp/4001"),
		multiaddr.StringCast("/ip4/10.0.0.2/udp/4002/quic-v1"),
		multiaddr.StringCast("/dns4/example.org/tcp/443/wss"),
	}

	lan := lanAddrs(addrs)
	require.Len(t, lan, 2)

	ips, port := ipsAndPort(lan)
	assert.Equal(t, 4001, port)
	require.Len(t, ips, 2)
	assert.Equal(t, "192.168.1.10", ips[0].String())
	assert.Equal(t, "10.0.0.2", ips[1].String())
}

func TestService_Disabled(t *testing.T) {
	h := testutil.NewHost(t)
	svc := New(h, h.Book, config.DefaultDiscoveryConfig().MDNS, nil)

	var queried atomic.Int32
	svc.query = func(*mdns.QueryParam) error {
		queried.Add(1)
		return nil
	}
	require.NoError(t, svc.Start(context.Background()))
	require.NoError(t, svc.Stop())
	assert.Zero(t, queried.Load())
	assert.Equal(t, "mdns", svc.Name())
}

func TestService_StartStop(t *testing.T) {
	h := testutil.NewHost(t)
	svc := New(h, h.Book, enabledConfig(), nil, WithClock(clock.NewMock()))
	svc.query = func(*mdns.QueryParam) error { return nil }

	assert.ErrorIs(t, svc.Stop(), ErrNotStarted)
	require.NoError(t, svc.Start(context.Background()))
	assert.ErrorIs(t, svc.Start(context.Background()), ErrAlreadyStarted)
	require.NoError(t, svc.Stop())
}

func TestService_ConnectsToDiscoveredPeer(t *testing.T) {
	a, b := testutil.NewHost(t), testutil.NewHost(t)
	mock := clock.NewMock()
	svc := New(a, a.Book, enabledConfig(), nil, WithClock(mock))

	var queries atomic.Int32
	svc.query = func(p *mdns.QueryParam) error {
		queries.Add(1)
		assert.Equal(t, "_ucnode._udp", p.Service)
		p.Entries <- &mdns.ServiceEntry{InfoFields: buildTXTRecords(a.ID(), a.Network().ListenAddresses())}
		p.Entries <- &mdns.ServiceEntry{InfoFields: buildTXTRecords(b.ID(), b.Network().ListenAddresses())}
		return nil
	}
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Stop() })

	testutil.Eventually(t, 5*time.Second, func() bool {
		return a.Network().Connected(b.ID())
	}, "discovered peer should be connected")
	assert.Equal(t, []string{b.ID().String()}, peerStrings(svc))

	mock.Add(enabledConfig().QueryInterval.Duration())
	testutil.Eventually(t, 5*time.Second, func() bool {
		return queries.Load() >= 2
	}, "query should repeat every interval")
}

func peerStrings(svc *Service) []string {
	var out []string
	for _, p := range svc.Found() {
		out = append(out, p.String())
	}
	return out
}
