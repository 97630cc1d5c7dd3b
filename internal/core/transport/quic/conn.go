package quic

import (
	"context"

	"github.com/quic-go/quic-go"

	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// 连接关闭错误码
const (
	closeNormal   quic.ApplicationErrorCode = 0
	closeMismatch quic.ApplicationErrorCode = 1
)

// conn 将 *quic.Conn 适配为 CapableConn
type conn struct {
	qc        *quic.Conn
	transport *Transport

	localPeer  types.PeerID
	remotePeer types.PeerID
	remotePub  crypto.PublicKey

	laddr multiaddr.Multiaddr
	raddr multiaddr.Multiaddr
}

var _ pkgif.CapableConn = (*conn)(nil)

// newConn 从握手完成的 QUIC 连接构造 CapableConn
func newConn(qc *quic.Conn, t *Transport) (*conn, error) {
	pub, id, err := remoteIdentity(qc.ConnectionState().TLS)
	if err != nil {
		return nil, err
	}
	laddr, err := toQuicMultiaddr(qc.LocalAddr())
	if err != nil {
		return nil, err
	}
	raddr, err := toQuicMultiaddr(qc.RemoteAddr())
	if err != nil {
		return nil, err
	}
	return &conn{
		qc:         qc,
		transport:  t,
		localPeer:  t.localPeer,
		remotePeer: id,
		remotePub:  pub,
		laddr:      laddr,
		raddr:      raddr,
	}, nil
}

func (c *conn) OpenStream(ctx context.Context) (pkgif.MuxedStream, error) {
	s, err := c.qc.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return &stream{Stream: s}, nil
}

func (c *conn) AcceptStream() (pkgif.MuxedStream, error) {
	s, err := c.qc.AcceptStream(c.qc.Context())
	if err != nil {
		return nil, err
	}
	return &stream{Stream: s}, nil
}

func (c *conn) Close() error {
	return c.qc.CloseWithError(closeNormal, "")
}

func (c *conn) IsClosed() bool {
	return c.qc.Context().Err() != nil
}

func (c *conn) LocalPeer() types.PeerID              { return c.localPeer }
func (c *conn) RemotePeer() types.PeerID             { return c.remotePeer }
func (c *conn) RemotePublicKey() crypto.PublicKey    { return c.remotePub }
func (c *conn) LocalMultiaddr() multiaddr.Multiaddr  { return c.laddr }
func (c *conn) RemoteMultiaddr() multiaddr.Multiaddr { return c.raddr }
func (c *conn) Transport() pkgif.Transport           { return c.transport }
