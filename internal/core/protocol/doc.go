// Package protocol 组装节点的系统协议
//
// # 系统协议
//
//   - identify (/ipfs/id/1.0.0, /ipfs/id/push/1.0.0)：连接建立后交换节点信息，
//     本地地址变化时推送
//   - ping (/ipfs/ping/1.0.0)：存活检测和 RTT 测量
//
// 协议协商由 Host 通过 multistream-select 完成，本包只负责在生命周期内
// 注册和注销处理器。具体实现位于 system 子包。
package protocol
