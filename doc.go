// Package ucnode 提供 universal-connectivity 网络中的对等节点
//
// 节点加入公共网络，通过引导节点与 DHT 发现对端，在单一主题上收发签名的
// gossip 消息，并公告自身可达地址，包括 NAT 之后的节点经中继可拨的 WebRTC 地址。
//
// # 快速开始
//
//	node, err := ucnode.New(ctx,
//	    ucnode.WithListenAddrs("/ip4/0.0.0.0/udp/0/quic-v1", "/p2p-circuit", "/webrtc"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer node.Close()
//
//	_ = node.Publish(ctx, []byte("hello"))
//	msg, err := node.Subscription().Next(ctx)
//
// # 组装
//
// New 按以下顺序通过 fx 组装节点：
//
//	config → identity → eventbus → addrbook → metrics → peerstore
//	→ transports → upgrader → swarm → host → identify/ping → liveness
//	→ autonat → relay → webrtc → bootstrap/DHT → pubsub
//
// 启动成功后订阅 Config.Topic，并注册地址变化观察者，由 relayaddr.Deriver
// 派生经中继可拨的 WebRTC 地址。组装失败返回 *AssemblyError。
// 启动后各子系统的异步失败只记录日志。
//
// # 拨号
//
// Dial 对单个地址进行一次拨号尝试，失败返回 *DialError，不重试。
//
// # 文件组织
//
//   - ucnode.go: 版本信息
//   - constants.go: 主题、引导节点与协议常量
//   - errors.go: AssemblyError 与 DialError
//   - options.go: 函数式选项
//   - fx.go: fx 模块组装
//   - node.go: Node 与生命周期
//   - dial.go: 单次拨号
package ucnode
