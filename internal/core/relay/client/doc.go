// Package client 中继客户端
//
// 提供两部分能力：
//   - Transport：/p2p-circuit 代理传输。拨号时经中继的 hop 协议请求 CONNECT，
//     监听时通过 stop 协议接收电路；电路流之上再做 Noise 握手与 yamux 复用
//   - Reservations：在已连接且支持 hop 协议的节点上维持最多 N 个预约，
//     把得到的 <relay>/p2p/<relay-id>/p2p-circuit 地址作为 host.SourceRelay 来源公告
//
// 地址格式：
//
//	<relay-addr>/p2p/<relay-id>/p2p-circuit/p2p/<dest-id>
//
// 经中继的连接在 Swarm 中标记为 Transient。
package client
