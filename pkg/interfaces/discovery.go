package interfaces

import (
	"context"

	"github.com/dep2p/go-ucnode/pkg/types"
)

// DiscoveryMechanism 对端发现机制
//
// 引导节点连接与 DHT 都实现此接口，由节点组合层统一启动与停止。
type DiscoveryMechanism interface {
	// Name 机制名称（用于日志）
	Name() string

	// Start 启动后台发现
	Start(ctx context.Context) error

	// Stop 停止后台发现
	Stop() error
}

// Routing 对端路由（DHT）
type Routing interface {
	DiscoveryMechanism

	// FindPeer 查找对端地址
	FindPeer(ctx context.Context, id types.PeerID) (types.AddrInfo, error)

	// Bootstrap 刷新路由表
	Bootstrap(ctx context.Context) error

	// RoutingTableSize 返回路由表中的对端数量
	RoutingTableSize() int
}
