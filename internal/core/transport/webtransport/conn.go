package webtransport

import (
	"context"
	"net"

	"github.com/quic-go/webtransport-go"

	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// conn 将 WebTransport 会话适配为 CapableConn
type conn struct {
	sess      *webtransport.Session
	transport *Transport

	localPeer  types.PeerID
	remotePeer types.PeerID
	remotePub  crypto.PublicKey

	laddr multiaddr.Multiaddr
	raddr multiaddr.Multiaddr
}

var _ pkgif.CapableConn = (*conn)(nil)

func (c *conn) OpenStream(ctx context.Context) (pkgif.MuxedStream, error) {
	s, err := c.sess.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return &stream{Stream: s}, nil
}

func (c *conn) AcceptStream() (pkgif.MuxedStream, error) {
	s, err := c.sess.AcceptStream(c.sess.Context())
	if err != nil {
		return nil, err
	}
	return &stream{Stream: s}, nil
}

func (c *conn) Close() error {
	return c.sess.CloseWithError(closeNormal, "")
}

func (c *conn) IsClosed() bool {
	return c.sess.Context().Err() != nil
}

func (c *conn) LocalPeer() types.PeerID              { return c.localPeer }
func (c *conn) RemotePeer() types.PeerID             { return c.remotePeer }
func (c *conn) RemotePublicKey() crypto.PublicKey    { return c.remotePub }
func (c *conn) LocalMultiaddr() multiaddr.Multiaddr  { return c.laddr }
func (c *conn) RemoteMultiaddr() multiaddr.Multiaddr { return c.raddr }
func (c *conn) Transport() pkgif.Transport           { return c.transport }

// streamConn 把握手流包装为 net.Conn 交给 Noise
type streamConn struct {
	*webtransport.Stream
	sess *webtransport.Session
}

var _ net.Conn = (*streamConn)(nil)

func (s *streamConn) LocalAddr() net.Addr  { return s.sess.LocalAddr() }
func (s *streamConn) RemoteAddr() net.Addr { return s.sess.RemoteAddr() }
