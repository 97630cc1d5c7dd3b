package noise

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/types"
)

func newTransport(t *testing.T) (*Transport, types.PeerID) {
	t.Helper()
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	tr, err := New(priv, nil)
	require.NoError(t, err)
	return tr, tr.localPeer
}

type result struct {
	conn *Conn
	err  error
}

func handshake(t *testing.T, client, server *Transport, expect types.PeerID) (result, result) {
	t.Helper()
	c, s := net.Pipe()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srvCh := make(chan result, 1)
	go func() {
		conn, err := server.SecureInbound(ctx, s, "")
		if err != nil {
			s.Close()
		}
		srvCh <- result{conn, err}
	}()
	conn, err := client.SecureOutbound(ctx, c, expect)
	if err != nil {
		c.Close()
	}
	return result{conn, err}, <-srvCh
}

func TestHandshake(t *testing.T) {
	client, clientID := newTransport(t)
	server, serverID := newTransport(t)

	cr, sr := handshake(t, client, server, serverID)
	require.NoError(t, cr.err)
	require.NoError(t, sr.err)
	defer cr.conn.Close()
	defer sr.conn.Close()

	assert.Equal(t, serverID, cr.conn.RemotePeer())
	assert.Equal(t, clientID, sr.conn.RemotePeer())
	assert.Equal(t, clientID, cr.conn.LocalPeer())
	assert.True(t, crypto.PeerIDMatchesPublicKey(serverID, cr.conn.RemotePublicKey()))

	// 超过单帧的数据被拆分传输
	big := make([]byte, 200*1024)
	for i := range big {
		big[i] = byte(i)
	}
	go func() {
		_, _ = cr.conn.Write(big)
	}()
	got := make([]byte, len(big))
	_, err := io.ReadFull(sr.conn, got)
	require.NoError(t, err)
	assert.Equal(t, big, got)
}

func TestHandshake_PeerMismatch(t *testing.T) {
	client, _ := newTransport(t)
	server, _ := newTransport(t)
	_, other := newTransport(t)

	cr, _ := handshake(t, client, server, other)
	assert.ErrorIs(t, cr.err, ErrPeerIDMismatch)
}

func TestHandshake_ContextCancel(t *testing.T) {
	client, _ := newTransport(t)
	c, s := net.Pipe()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := client.SecureOutbound(ctx, c, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPayload(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	static := make([]byte, 32)
	static[0] = 7

	b, err := newPayload(priv, static, nil)
	require.NoError(t, err)

	got, ext, err := verifyRemotePayload(b, static)
	require.NoError(t, err)
	assert.True(t, crypto.KeyEqual(pub, got))
	assert.Nil(t, ext)

	other := make([]byte, 32)
	_, _, err = verifyRemotePayload(b, other)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, _, err = verifyRemotePayload([]byte{0xff}, static)
	assert.Error(t, err)
}

func TestHandshake_Extensions(t *testing.T) {
	client, _ := newTransport(t)
	base, serverID := newTransport(t)
	ext := &Extensions{
		WebTransportCerthashes: [][]byte{{0x12, 0x02, 0xaa, 0xbb}},
		StreamMuxers:           []string{"/yamux/1.0.0"},
	}
	server, err := base.WithExtensions(ext)
	require.NoError(t, err)
	assert.Equal(t, serverID, server.LocalPeer())

	cr, sr := handshake(t, client, server, serverID)
	require.NoError(t, cr.err)
	require.NoError(t, sr.err)
	defer cr.conn.Close()
	defer sr.conn.Close()

	assert.Equal(t, ext, cr.conn.RemoteExtensions())
	assert.Nil(t, sr.conn.RemoteExtensions())
}
