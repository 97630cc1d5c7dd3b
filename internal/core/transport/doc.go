// Package transport 组装直连传输层
//
// 按配置创建 QUIC、TCP 与 WebSocket 传输并注入 "transports" 值组，
// Swarm 从该组取得全部传输。依赖主机的代理传输（电路中继、WebRTC）
// 由各自模块在主机创建后注册到 Swarm。
package transport
