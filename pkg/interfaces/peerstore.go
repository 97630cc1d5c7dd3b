package interfaces

import (
	"time"

	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// 地址 TTL
const (
	// TempAddrTTL 临时地址（拨号尝试用）
	TempAddrTTL = 2 * time.Minute
	// RecentlyConnectedAddrTTL 最近连接过的地址
	RecentlyConnectedAddrTTL = 10 * time.Minute
	// ConnectedAddrTTL 当前连接的地址
	ConnectedAddrTTL = 365 * 24 * time.Hour
	// PermanentAddrTTL 永久地址（引导节点等）
	PermanentAddrTTL = 100 * 365 * 24 * time.Hour
)

// Peerstore 对端信息存储
type Peerstore interface {
	// AddAddrs 追加地址
	AddAddrs(p types.PeerID, addrs []multiaddr.Multiaddr, ttl time.Duration)

	// SetAddrs 替换地址
	SetAddrs(p types.PeerID, addrs []multiaddr.Multiaddr, ttl time.Duration)

	// Addrs 返回未过期地址
	Addrs(p types.PeerID) []multiaddr.Multiaddr

	// ClearAddrs 清空地址
	ClearAddrs(p types.PeerID)

	// AddPubKey 记录公钥（必须与 ID 匹配）
	AddPubKey(p types.PeerID, pub crypto.PublicKey) error

	// PubKey 返回公钥，identity 编码的 ID 可直接还原
	PubKey(p types.PeerID) crypto.PublicKey

	// SetProtocols 替换对端支持的协议
	SetProtocols(p types.PeerID, protos ...types.ProtocolID)

	// GetProtocols 返回对端支持的协议
	GetProtocols(p types.PeerID) []types.ProtocolID

	// SupportsProtocols 返回 protos 中对端支持的子集
	SupportsProtocols(p types.PeerID, protos ...types.ProtocolID) []types.ProtocolID

	// PeerInfo 返回对端地址信息
	PeerInfo(p types.PeerID) types.AddrInfo

	// Peers 返回已知对端
	Peers() []types.PeerID

	// RemovePeer 删除对端全部信息
	RemovePeer(p types.PeerID)
}
