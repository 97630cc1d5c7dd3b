// Package websocket 提供基于 WebSocket 的传输层实现
//
// 浏览器节点只能通过 WebSocket、WebRTC 与 WebTransport 接入，
// WebSocket 是其中唯一基于 TCP 的选择。
//
// 地址格式：
//
//	/ip4/<ip>/tcp/<port>/ws
//	/dns4/<host>/tcp/<port>/wss
//
// 每个 WebSocket 二进制消息承载一段字节流，
// 连接经 Upgrader 完成 Noise 握手与 yamux 复用。
package websocket
