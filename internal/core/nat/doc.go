// Package nat 实现可达性探测
//
// # 组成
//
//   - AutoNAT 客户端：请求已连接的对端拨回本节点地址，维护可达性状态
//   - AutoNAT 服务端：为其他节点执行拨回
//   - stun 子包：查询外部 UDP 地址，作为候选地址参与拨回验证
//
// # 协议 ID
//
//	/libp2p/autonat/1.0.0
//
// # 状态转换
//
// 初始为 Unknown，第一个明确结果直接决定状态。之后相同结果增加置信度
// （上限 3），相反结果减少置信度，置信度为 0 时再遇到相反结果才翻转：
//
//	Unknown → (OK)           → Public
//	Unknown → (E_DIAL_ERROR) → Private
//	Public  → (置信度耗尽后 E_DIAL_ERROR) → Private
//
// E_DIAL_REFUSED 与网络错误不计入。状态变化通过
// types.EvtLocalReachabilityChanged 发出（有状态发射器，后订阅者也能拿到当前值）。
//
// # 服务端约束
//
// 只拨回与请求连接观测 IP 相同的直连地址，不拨中继地址，
// 同一对端同时只处理一个请求。
package nat
