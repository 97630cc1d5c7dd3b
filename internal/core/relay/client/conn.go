package client

import (
	"net"
	"time"

	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
)

// circuitConn 将电路流适配为 net.Conn，供 Upgrader 做安全握手
type circuitConn struct {
	pkgif.Stream
	laddr multiaddr.Multiaddr
	raddr multiaddr.Multiaddr
}

var _ net.Conn = (*circuitConn)(nil)

func newCircuitConn(s pkgif.Stream, laddr, raddr multiaddr.Multiaddr) *circuitConn {
	return &circuitConn{Stream: s, laddr: laddr, raddr: raddr}
}

// Close 关闭电路
//
// 上层 yamux 关闭时电路两个方向都结束，直接重置底层流。
func (c *circuitConn) Close() error {
	return c.Stream.Reset()
}

func (c *circuitConn) LocalAddr() net.Addr  { return &netAddr{c.laddr} }
func (c *circuitConn) RemoteAddr() net.Addr { return &netAddr{c.raddr} }

func (c *circuitConn) SetDeadline(t time.Time) error      { return c.Stream.SetDeadline(t) }
func (c *circuitConn) SetReadDeadline(t time.Time) error  { return c.Stream.SetReadDeadline(t) }
func (c *circuitConn) SetWriteDeadline(t time.Time) error { return c.Stream.SetWriteDeadline(t) }

// netAddr 以多地址字符串表示的 net.Addr
type netAddr struct {
	m multiaddr.Multiaddr
}

func (a *netAddr) Network() string { return "p2p-circuit" }

func (a *netAddr) String() string {
	if a.m == nil {
		return ""
	}
	return a.m.String()
}
