package host

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-ucnode/internal/core/addrbook"
	"github.com/dep2p/go-ucnode/internal/core/eventbus"
	"github.com/dep2p/go-ucnode/internal/core/peerstore"
	"github.com/dep2p/go-ucnode/internal/core/security/noise"
	"github.com/dep2p/go-ucnode/internal/core/swarm"
	"github.com/dep2p/go-ucnode/internal/core/transport/tcp"
	"github.com/dep2p/go-ucnode/internal/core/upgrader"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

const echoProto types.ProtocolID = "/test/echo/1.0.0"

func newHost(t *testing.T) (*Host, *addrbook.Book) {
	t.Helper()
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	id, err := crypto.PeerIDFromPrivateKey(priv)
	require.NoError(t, err)
	sec, err := noise.New(priv, nil)
	require.NoError(t, err)
	ps, err := peerstore.New(0)
	require.NoError(t, err)
	bus := eventbus.NewBus()
	book, err := addrbook.New(id, bus, nil)
	require.NoError(t, err)

	sw := swarm.New(id, ps)
	tr := tcp.New(upgrader.New(sec, 2*time.Second, nil), time.Second, nil)
	require.NoError(t, sw.AddTransport(tr))

	h := New(sw, bus, book, nil)
	t.Cleanup(func() {
		h.Close()
		tr.Close()
		book.Close()
	})
	return h, book
}

func listen(t *testing.T, h *Host) types.AddrInfo {
	t.Helper()
	require.NoError(t, h.Listen(multiaddr.StringCast("/ip4/127.0.0.1/tcp/0")))
	return types.AddrInfo{ID: h.ID(), Addrs: h.Network().ListenAddresses()}
}

func echo(s pkgif.Stream) {
	defer s.Close()
	_, _ = io.Copy(s, s)
	_ = s.CloseWrite()
}

func TestHost_NegotiatesProtocol(t *testing.T) {
	a, _ := newHost(t)
	b, _ := newHost(t)
	b.SetStreamHandler(echoProto, echo)
	info := listen(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Connect(ctx, info))

	s, err := a.NewStream(ctx, b.ID(), "/test/missing/1.0.0", echoProto)
	require.NoError(t, err)
	assert.Equal(t, echoProto, s.Protocol())

	_, err = s.Write([]byte("marco"))
	require.NoError(t, err)
	require.NoError(t, s.CloseWrite())
	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "marco", string(got))

	assert.Contains(t, a.Peerstore().GetProtocols(b.ID()), echoProto)
}

func TestHost_UnsupportedProtocol(t *testing.T) {
	a, _ := newHost(t)
	b, _ := newHost(t)
	info := listen(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Connect(ctx, info))

	_, err := a.NewStream(ctx, b.ID(), echoProto)
	require.Error(t, err)
}

func TestHost_RemoveStreamHandler(t *testing.T) {
	h, _ := newHost(t)
	h.SetStreamHandler(echoProto, echo)
	assert.Contains(t, h.Protocols(), echoProto)
	h.RemoveStreamHandler(echoProto)
	assert.NotContains(t, h.Protocols(), echoProto)
}

func TestHost_ListenUpdatesAddressBook(t *testing.T) {
	h, book := newHost(t)
	got := make(chan types.EvtLocalAddressesChanged, 4)
	cancel := book.OnLocalAddressesChanged(func(e types.EvtLocalAddressesChanged) { got <- e })
	defer cancel()

	listen(t, h)

	select {
	case e := <-got:
		require.Len(t, e.Addrs, 1)
		assert.True(t, e.Addrs[0].HasProtocol(multiaddr.P_TCP))
	case <-time.After(2 * time.Second):
		t.Fatal("no address change delivered")
	}

	relayAddr := multiaddr.StringCast("/ip4/1.2.3.4/tcp/4001/p2p/12D3KooWLDcrrZN1A1nTUGXqsCUUEqEq3wrvhr8XKxfWSJDh2nBN/p2p-circuit")
	h.SetAddrSource(SourceRelay, []multiaddr.Multiaddr{relayAddr})
	select {
	case e := <-got:
		assert.Len(t, e.Addrs, 2)
		assert.True(t, e.Addrs.Contains(relayAddr))
	case <-time.After(2 * time.Second):
		t.Fatal("no address change delivered")
	}
}

func TestAddrsManager_ExpandUnspecified(t *testing.T) {
	m := newAddrsManager(func() []multiaddr.Multiaddr {
		return []multiaddr.Multiaddr{
			multiaddr.StringCast("/ip4/0.0.0.0/tcp/4001"),
			multiaddr.StringCast("/p2p-circuit"),
		}
	})
	m.ifaceAddrs = func() ([]net.Addr, error) {
		return []net.Addr{
			&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)},
			&net.IPNet{IP: net.ParseIP("192.168.1.10"), Mask: net.CIDRMask(24, 32)},
			&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
		}, nil
	}

	assert.Equal(t, []string{
		"/ip4/127.0.0.1/tcp/4001",
		"/ip4/192.168.1.10/tcp/4001",
	}, multiaddr.Strings(m.addrs()))

	m.ifaceAddrs = func() ([]net.Addr, error) { return nil, errors.New("boom") }
	assert.Equal(t, []string{"/ip4/0.0.0.0/tcp/4001"}, multiaddr.Strings(m.addrs()))
}

func TestLimitHandler(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 2)
	h := LimitHandler(1, func(pkgif.Stream) {
		entered <- struct{}{}
		<-release
	})

	first := &resetStream{}
	go h(first)
	<-entered

	second := &resetStream{}
	h(second)
	assert.True(t, second.reset)
	close(release)
}

type resetStream struct {
	pkgif.Stream
	reset bool
}

func (s *resetStream) Reset() error {
	s.reset = true
	return nil
}
