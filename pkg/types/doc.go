// Package types 定义 ucnode 的公共数据结构
//
// 这是系统的最底层包，只依赖 pkg/lib 中的基础库。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - ids.go        - PeerID, ProtocolID
//   - enums.go      - Direction, Connectedness, Reachability
//   - address.go    - AddressSet 地址集合快照
//   - discovery.go  - AddrInfo 节点地址信息
//   - gossip.go     - GossipMessage 主题消息
//   - events.go     - 事件类型
//   - errors.go     - 公共错误定义
package types
