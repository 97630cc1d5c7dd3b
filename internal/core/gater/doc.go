// Package gater 实现连接门控器
//
// gater 在连接建立的各个阶段进行检查，决定是否允许连接继续：
//
//   - InterceptPeerDial: 拨号前检查目标节点
//   - InterceptAddrDial: 拨号前检查目标地址所在网段
//   - InterceptAccept: 入站连接的远端地址
//   - InterceptSecured: 握手完成后的对端身份
//
// # 使用示例
//
//	g := gater.New()
//	g.BlockPeer(id)
//	_ = g.BlockCIDR("10.0.0.0/8")
//
//	swarm.New(local, ps, swarm.WithGater(g))
package gater
