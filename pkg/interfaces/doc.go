// Package interfaces 定义 ucnode 组件的能力接口
//
// 节点组合层只依赖这些接口，不依赖具体实现：
//
//   - Transport/Listener/CapableConn: 传输层（QUIC、TCP、WebSocket、WebRTC、中继）
//   - Upgrader: 将原始连接升级为安全、可复用的连接
//   - Swarm/Conn/Stream: 连接管理与拨号
//   - Host: 协议协商与流处理
//   - Peerstore: 对端地址、公钥与协议
//   - EventBus: 类型化事件发布订阅
//   - DiscoveryMechanism/Routing: 对端发现
//   - GossipChannel: 主题消息传播
//
// 具体实现位于 internal/ 下，由根包通过 fx 组装。
package interfaces
