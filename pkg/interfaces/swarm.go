package interfaces

import (
	"context"
	"time"

	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// ConnStat 连接元数据
type ConnStat struct {
	Direction types.Direction
	Opened    time.Time
	// Transient 经中继建立的受限连接
	Transient bool
}

// Conn 由 Swarm 管理的连接
type Conn interface {
	ConnSecurity
	ConnMultiaddrs

	// ID 连接唯一标识
	ID() string

	// NewStream 在此连接上打开新流（尚未协商协议）
	NewStream(ctx context.Context) (Stream, error)

	// GetStreams 返回此连接上的所有流
	GetStreams() []Stream

	// Stat 返回连接元数据
	Stat() ConnStat

	// Close 关闭连接
	Close() error

	// IsClosed 连接是否已关闭
	IsClosed() bool
}

// Stream 由 Swarm 管理的流
type Stream interface {
	MuxedStream

	// ID 流唯一标识
	ID() string

	// Protocol 返回协商得到的协议
	Protocol() types.ProtocolID

	// SetProtocol 设置协议（由 Host 在协商后调用）
	SetProtocol(types.ProtocolID)

	// Conn 返回所属连接
	Conn() Conn

	// Direction 返回流方向
	Direction() types.Direction
}

// Notifiee 连接事件通知
type Notifiee interface {
	Connected(Swarm, Conn)
	Disconnected(Swarm, Conn)
}

// NotifyBundle 以函数字段实现 Notifiee
type NotifyBundle struct {
	ConnectedF    func(Swarm, Conn)
	DisconnectedF func(Swarm, Conn)
}

// Connected 实现 Notifiee
func (nb *NotifyBundle) Connected(s Swarm, c Conn) {
	if nb.ConnectedF != nil {
		nb.ConnectedF(s, c)
	}
}

// Disconnected 实现 Notifiee
func (nb *NotifyBundle) Disconnected(s Swarm, c Conn) {
	if nb.DisconnectedF != nil {
		nb.DisconnectedF(s, c)
	}
}

// Swarm 连接管理
type Swarm interface {
	// LocalPeer 返回本地节点 ID
	LocalPeer() types.PeerID

	// Peerstore 返回对端存储
	Peerstore() Peerstore

	// AddTransport 注册传输
	AddTransport(Transport) error

	// Transports 返回已注册传输
	Transports() []Transport

	// TransportForDialing 返回能拨号该地址的传输，没有时返回 nil
	TransportForDialing(multiaddr.Multiaddr) Transport

	// Listen 在多个地址上监听，全部失败时返回错误
	Listen(addrs ...multiaddr.Multiaddr) error

	// ListenAddresses 返回实际绑定的监听地址
	ListenAddresses() []multiaddr.Multiaddr

	// DialAddr 对单个地址进行一次拨号尝试
	DialAddr(ctx context.Context, addr multiaddr.Multiaddr, peer types.PeerID) (Conn, error)

	// DialPeer 使用 peerstore 中的地址连接对端（已连接时复用）
	DialPeer(ctx context.Context, peer types.PeerID) (Conn, error)

	// NewStream 在到对端的连接上打开流（必要时先拨号）
	NewStream(ctx context.Context, peer types.PeerID) (Stream, error)

	// SetStreamHandler 设置入站流处理器
	SetStreamHandler(func(Stream))

	// Conns 返回所有连接
	Conns() []Conn

	// ConnsToPeer 返回到指定对端的连接
	ConnsToPeer(types.PeerID) []Conn

	// Peers 返回已连接的对端
	Peers() []types.PeerID

	// Connected 是否存在到对端的连接
	Connected(types.PeerID) bool

	// ClosePeer 关闭到对端的所有连接
	ClosePeer(types.PeerID) error

	// Notify 注册连接事件通知
	Notify(Notifiee)

	// StopNotify 取消连接事件通知
	StopNotify(Notifiee)

	// Close 关闭所有监听器与连接
	Close() error
}

// ConnectionGater 连接门控
//
// 返回 false 表示拒绝。Swarm 在拨号前调用 InterceptAddrDial，
// 在入站连接完成握手后调用 InterceptAccept 与 InterceptSecured。
type ConnectionGater interface {
	// InterceptPeerDial 拨号前检查目标节点
	InterceptPeerDial(p types.PeerID) bool

	// InterceptAddrDial 拨号前检查目标地址
	InterceptAddrDial(p types.PeerID, addr multiaddr.Multiaddr) bool

	// InterceptAccept 检查入站连接的远端地址
	InterceptAccept(remote multiaddr.Multiaddr) bool

	// InterceptSecured 握手完成后检查对端身份
	InterceptSecured(dir types.Direction, p types.PeerID) bool
}
