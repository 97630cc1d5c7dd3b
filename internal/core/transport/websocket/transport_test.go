package websocket

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-ucnode/internal/core/security/noise"
	"github.com/dep2p/go-ucnode/internal/core/upgrader"
	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

func newTransport(t *testing.T) (*Transport, types.PeerID) {
	t.Helper()
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	id, err := crypto.PeerIDFromPrivateKey(priv)
	require.NoError(t, err)
	sec, err := noise.New(priv, nil)
	require.NoError(t, err)
	tr := New(upgrader.New(sec, 5*time.Second, nil), time.Second, nil)
	t.Cleanup(func() { tr.Close() })
	return tr, id
}

func TestCanDial(t *testing.T) {
	tr, _ := newTransport(t)

	assert.True(t, tr.CanDial(multiaddr.StringCast("/ip4/127.0.0.1/tcp/80/ws")))
	assert.True(t, tr.CanDial(multiaddr.StringCast("/dns4/example.com/tcp/443/wss")))
	assert.False(t, tr.CanDial(multiaddr.StringCast("/ip4/127.0.0.1/tcp/80")))
	assert.False(t, tr.CanDial(multiaddr.StringCast("/ip4/127.0.0.1/udp/80/quic-v1")))
}

func TestToURL(t *testing.T) {
	u, err := toURL(multiaddr.StringCast("/dns4/example.com/tcp/443/wss"))
	require.NoError(t, err)
	assert.Equal(t, "wss://example.com:443/", u.String())

	u, err = toURL(multiaddr.StringCast("/ip4/127.0.0.1/tcp/8080/ws"))
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:8080/", u.String())
}

func TestDialListen(t *testing.T) {
	server, serverID := newTransport(t)
	client, _ := newTransport(t)

	l, err := server.Listen(multiaddr.StringCast("/ip4/127.0.0.1/tcp/0/ws"))
	require.NoError(t, err)
	defer l.Close()
	assert.True(t, l.Multiaddr().HasProtocol(multiaddr.P_WS))

	go func() {
		c, err := l.Accept()
		if err != nil {
			return
		}
		s, err := c.AcceptStream()
		if err != nil {
			return
		}
		_, _ = io.Copy(s, s)
		_ = s.CloseWrite()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := client.Dial(ctx, l.Multiaddr(), serverID)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, serverID, c.RemotePeer())

	s, err := c.OpenStream(ctx)
	require.NoError(t, err)
	_, err = s.Write([]byte("hello over websocket"))
	require.NoError(t, err)
	require.NoError(t, s.CloseWrite())
	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "hello over websocket", string(got))
}

func TestListenWSSRejected(t *testing.T) {
	tr, _ := newTransport(t)
	_, err := tr.Listen(multiaddr.StringCast("/ip4/127.0.0.1/tcp/0/wss"))
	require.Error(t, err)
}
