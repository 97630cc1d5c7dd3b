// Package relay 组装电路中继（circuit relay v2）
//
// # 组件
//
//	┌──────────────────────────────────────────────────────────┐
//	│                         relay                              │
//	├────────────────────────┬─────────────────────────────────┤
//	│  client.Transport      │  /p2p-circuit 代理传输            │
//	│  client.Reservations   │  维持预约，公告电路地址            │
//	│  server.Server         │  hop 服务端（EnableHop 时启用）    │
//	└────────────────────────┴─────────────────────────────────┘
//
// 传输在 Host 创建之后通过 Swarm.AddTransport 注册（它依赖 Host 打开 hop 流），
// 因此不进入 transports 值组。
//
// # 协议 ID
//
//	/libp2p/circuit/relay/0.2.0/hop
//	/libp2p/circuit/relay/0.2.0/stop
//
// # 地址
//
// 预约成功后公告 <relay-addr>/p2p/<relay-id>/p2p-circuit，
// relayaddr 再由此派生 .../p2p-circuit/webrtc/p2p/<self> 供浏览器节点拨号。
package relay
