package quic

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
	tr, err := New(priv, 5*time.Second, nil)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr, id
}

func TestCanDial(t *testing.T) {
	tr, _ := newTransport(t)

	assert.True(t, tr.CanDial(multiaddr.StringCast("/ip4/127.0.0.1/udp/4001/quic-v1")))
	assert.True(t, tr.CanDial(multiaddr.StringCast("/ip6/::1/udp/4001/quic-v1")))
	assert.False(t, tr.CanDial(multiaddr.StringCast("/ip4/127.0.0.1/udp/4001/quic")))
	assert.False(t, tr.CanDial(multiaddr.StringCast("/ip4/127.0.0.1/tcp/4001")))
	assert.False(t, tr.CanDial(multiaddr.StringCast("/ip4/127.0.0.1/udp/4001/quic-v1/webtransport")))
}

func TestCertificateCarriesIdentity(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	cert, err := newCertificate(priv)
	require.NoError(t, err)

	got, err := peerFromRawCerts(cert.Certificate)
	require.NoError(t, err)
	assert.True(t, crypto.KeyEqual(pub, got))
}

func TestPeerFromRawCertsRejectsInvalid(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	a, err := newCertificate(priv)
	require.NoError(t, err)

	_, err = peerFromRawCerts(nil)
	require.ErrorIs(t, err, ErrNoCertificate)

	_, err = peerFromRawCerts([][]byte{a.Certificate[0][:len(a.Certificate[0])-8]})
	require.Error(t, err)
}

func TestDialListen(t *testing.T) {
	server, serverID := newTransport(t)
	client, clientID := newTransport(t)

	l, err := server.Listen(multiaddr.StringCast("/ip4/127.0.0.1/udp/0/quic-v1"))
	require.NoError(t, err)
	defer l.Close()
	port, err := l.Multiaddr().ValueForProtocol(multiaddr.P_UDP)
	require.NoError(t, err)
	assert.NotEqual(t, "0", port)

	accepted := make(chan types.PeerID, 1)
	go func() {
		c, err := l.Accept()
		if err != nil {
			return
		}
		accepted <- c.RemotePeer()
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
	_, err = s.Write([]byte("quic"))
	require.NoError(t, err)
	require.NoError(t, s.CloseWrite())
	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "quic", string(got))

	select {
	case id := <-accepted:
		assert.Equal(t, clientID, id)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not accept")
	}
}

func TestDialWrongPeer(t *testing.T) {
	server, _ := newTransport(t)
	client, _ := newTransport(t)
	_, otherID := newTransport(t)

	l, err := server.Listen(multiaddr.StringCast("/ip4/127.0.0.1/udp/0/quic-v1"))
	require.NoError(t, err)
	defer l.Close()
	go func() {
		for {
			if _, err := l.Accept(); err != nil {
				return
			}
		}
	}()

	_, err = client.Dial(context.Background(), l.Multiaddr(), otherID)
	require.ErrorIs(t, err, ErrPeerIDMismatch)
}
