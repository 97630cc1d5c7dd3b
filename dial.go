package ucnode

import (
	"context"
	"fmt"

	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// Connection 拨号建立的连接
type Connection struct {
	// RemotePeer 对端 ID
	RemotePeer types.PeerID

	// RemoteAddr 对端地址
	RemoteAddr multiaddr.Multiaddr

	// LocalAddr 本端地址
	LocalAddr multiaddr.Multiaddr

	// Direction 连接方向，拨号建立的总是出站
	Direction types.Direction

	// Transient 经中继建立的受限连接
	Transient bool
}

// Dial 对地址进行一次拨号尝试
//
// 通过节点已注册的传输拨号，不重试、不回退到其它地址。超时由 ctx 控制，
// 传输自身另有握手超时。失败返回 *DialError。
func Dial(ctx context.Context, n *Node, addr multiaddr.Multiaddr) (*Connection, error) {
	return n.Dial(ctx, addr)
}

// Dial 对地址进行一次拨号尝试，见包级 Dial
func (n *Node) Dial(ctx context.Context, addr multiaddr.Multiaddr) (*Connection, error) {
	if n.isClosed() {
		return nil, &DialError{Addr: addr, Cause: ErrNodeClosed}
	}
	if addr == nil {
		return nil, &DialError{Cause: ErrNilAddr}
	}

	n.logger.Info(fmt.Sprintf("dialling %s", addr))
	c, err := n.host.Network().DialAddr(ctx, addr, "")
	if err != nil {
		n.logger.Error("dial failed", "addr", addr.String(), "error", err)
		return nil, &DialError{Addr: addr, Cause: err}
	}

	stat := c.Stat()
	conn := &Connection{
		RemotePeer: c.RemotePeer(),
		RemoteAddr: c.RemoteMultiaddr(),
		LocalAddr:  c.LocalMultiaddr(),
		Direction:  stat.Direction,
		Transient:  stat.Transient,
	}
	n.logger.Info(fmt.Sprintf("connected to %s on %s", conn.RemotePeer, conn.RemoteAddr))
	return conn, nil
}
