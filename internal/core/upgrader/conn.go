package upgrader

import (
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

var _ pkgif.CapableConn = (*upgradedConn)(nil)

// upgradedConn 升级后的连接
type upgradedConn struct {
	pkgif.MuxedConn

	transport  pkgif.Transport
	localPeer  types.PeerID
	remotePeer types.PeerID
	remotePub  crypto.PublicKey
	laddr      multiaddr.Multiaddr
	raddr      multiaddr.Multiaddr
}

func (c *upgradedConn) LocalPeer() types.PeerID              { return c.localPeer }
func (c *upgradedConn) RemotePeer() types.PeerID             { return c.remotePeer }
func (c *upgradedConn) RemotePublicKey() crypto.PublicKey    { return c.remotePub }
func (c *upgradedConn) LocalMultiaddr() multiaddr.Multiaddr  { return c.laddr }
func (c *upgradedConn) RemoteMultiaddr() multiaddr.Multiaddr { return c.raddr }
func (c *upgradedConn) Transport() pkgif.Transport           { return c.transport }
