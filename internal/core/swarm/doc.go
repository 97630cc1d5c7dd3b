// Package swarm 实现连接管理
//
// Swarm 持有全部传输、监听器与连接：
//
//   - Listen 为每个地址选择传输并启动接受循环
//   - DialAddr 对单个地址进行一次拨号尝试，不重试
//   - DialPeer 依次尝试 peerstore 中的地址，同一对端的并发拨号合并为一次
//   - 每个连接有独立的流接受循环，入站流交给 Host 设置的处理器
//
// 连接建立与断开通过 Notifiee 与 EvtPeerConnectedness 事件通知，
// 拨号结果、连接数与流字节数记录到 Prometheus 指标。
//
// 代理传输（电路中继、WebRTC）依赖 Host，在 Host 创建后由各自模块
// 通过 AddTransport 注册。
package swarm
