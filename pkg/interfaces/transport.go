package interfaces

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// Transport 定义传输层接口
//
// Transport 抽象不同的传输协议（QUIC、TCP、WebSocket、WebRTC、中继）。
// 返回的连接已完成身份认证与流复用。
type Transport interface {
	// Dial 拨号连接到指定地址
	//
	// peer 为空时接受握手得到的任意身份。
	Dial(ctx context.Context, raddr multiaddr.Multiaddr, peer types.PeerID) (CapableConn, error)

	// CanDial 检查是否支持拨号到指定地址
	CanDial(addr multiaddr.Multiaddr) bool

	// Listen 在指定地址监听
	Listen(laddr multiaddr.Multiaddr) (Listener, error)

	// Protocols 返回处理的地址协议代码
	Protocols() []int

	// Proxy 是否为代理传输（中继、WebRTC 信令等依赖其他连接的传输）
	Proxy() bool

	// Close 关闭传输
	Close() error
}

// Listener 定义监听器接口
type Listener interface {
	// Accept 接受新连接
	Accept() (CapableConn, error)

	// Close 关闭监听器
	Close() error

	// Addr 返回网络地址
	Addr() net.Addr

	// Multiaddr 返回多地址格式（端口为实际绑定端口）
	Multiaddr() multiaddr.Multiaddr
}

// MuxedStream 复用流
type MuxedStream interface {
	io.Reader
	io.Writer
	io.Closer

	// CloseWrite 半关闭写方向
	CloseWrite() error

	// CloseRead 半关闭读方向
	CloseRead() error

	// Reset 异常终止流
	Reset() error

	SetDeadline(time.Time) error
	SetReadDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
}

// MuxedConn 复用连接
type MuxedConn interface {
	io.Closer

	// IsClosed 连接是否已关闭
	IsClosed() bool

	// OpenStream 打开新流
	OpenStream(ctx context.Context) (MuxedStream, error)

	// AcceptStream 接受对端打开的流
	AcceptStream() (MuxedStream, error)
}

// ConnSecurity 连接的认证信息
type ConnSecurity interface {
	LocalPeer() types.PeerID
	RemotePeer() types.PeerID
	RemotePublicKey() crypto.PublicKey
}

// ConnMultiaddrs 连接两端地址
type ConnMultiaddrs interface {
	LocalMultiaddr() multiaddr.Multiaddr
	RemoteMultiaddr() multiaddr.Multiaddr
}

// CapableConn 已认证、可复用的传输层连接
type CapableConn interface {
	MuxedConn
	ConnSecurity
	ConnMultiaddrs

	// Transport 返回建立此连接的传输
	Transport() Transport
}

// Upgrader 将原始连接升级为 CapableConn
//
// 升级顺序：multistream 协商安全协议 → Noise XX 握手 → multistream 协商复用协议 → yamux。
type Upgrader interface {
	Upgrade(ctx context.Context, t Transport, conn net.Conn, dir types.Direction, peer types.PeerID, laddr, raddr multiaddr.Multiaddr) (CapableConn, error)
}
