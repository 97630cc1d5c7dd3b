package types

import "github.com/dep2p/go-ucnode/pkg/lib/multiaddr"

// ============================================================================
//                              本地地址事件
// ============================================================================

// EvtLocalAddressesChanged 本节点地址集合变化
//
// Addrs 为变化后的完整集合快照，Added/Removed 为相对上一次的差异。
type EvtLocalAddressesChanged struct {
	Peer    PeerID
	Addrs   AddressSet
	Added   []multiaddr.Multiaddr
	Removed []multiaddr.Multiaddr
}

// EvtLocalReachabilityChanged 本节点可达性变化
type EvtLocalReachabilityChanged struct {
	Reachability Reachability
}

// ============================================================================
//                              对端事件
// ============================================================================

// EvtPeerConnectedness 对端连接状态变化
type EvtPeerConnectedness struct {
	Peer      PeerID
	Connected bool
}

// EvtPeerIdentified 对端完成 identify
type EvtPeerIdentified struct {
	Peer         PeerID
	ListenAddrs  []multiaddr.Multiaddr
	Protocols    []ProtocolID
	ObservedAddr multiaddr.Multiaddr
}

// EvtPeerAddrsChanged 对端地址簿中的地址变化
type EvtPeerAddrsChanged struct {
	Peer  PeerID
	Addrs []multiaddr.Multiaddr
}
