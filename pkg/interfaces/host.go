package interfaces

import (
	"context"

	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// StreamHandler 协议流处理器
type StreamHandler func(Stream)

// Host 定义 P2P 主机接口
//
// Host 在 Swarm 之上负责协议协商与流分发。
type Host interface {
	// ID 返回本地节点 ID
	ID() types.PeerID

	// Addrs 返回本节点对外地址（不含 /p2p 后缀）
	Addrs() []multiaddr.Multiaddr

	// Network 返回底层 Swarm
	Network() Swarm

	// Peerstore 返回对端存储
	Peerstore() Peerstore

	// EventBus 返回事件总线
	EventBus() EventBus

	// Connect 连接到对端（已连接时直接返回）
	Connect(ctx context.Context, info types.AddrInfo) error

	// SetStreamHandler 为指定协议设置流处理器
	SetStreamHandler(pid types.ProtocolID, handler StreamHandler)

	// RemoveStreamHandler 移除指定协议的流处理器
	RemoveStreamHandler(pid types.ProtocolID)

	// Protocols 返回已注册的协议列表
	Protocols() []types.ProtocolID

	// NewStream 打开到对端的流并协商协议（按顺序尝试 pids）
	NewStream(ctx context.Context, peer types.PeerID, pids ...types.ProtocolID) (Stream, error)

	// Close 关闭主机
	Close() error
}
