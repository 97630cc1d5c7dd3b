// Package identify 实现节点身份识别协议
//
// identify 协议用于在连接建立后交换节点信息，包括：
//   - 节点公钥
//   - 支持的协议列表
//   - 监听地址
//   - 对方观测到的本端地址
//   - 协议与代理版本
//
// # 协议 ID
//
//	/ipfs/id/1.0.0
//	/ipfs/id/push/1.0.0
//
// # 流程
//
//  1. 连接建立后（EvtPeerConnectedness）自动向对端发起 identify
//  2. 对端写出一条 Identify 消息后关闭流
//  3. 校验公钥与节点 ID，更新 Peerstore，发出 EvtPeerIdentified
//  4. 本地地址变化时向支持 push 的已连接节点推送新消息
//
// 多个不同 IP 的观测者报告同一观测地址后，该地址作为
// host.SourceObserved 来源加入本节点地址。
package identify
