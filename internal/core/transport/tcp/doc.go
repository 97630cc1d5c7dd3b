// Package tcp 提供基于 TCP 的传输层实现
//
// TCP 传输是 QUIC 的备选方案，用于 UDP 被防火墙阻止或对端只支持 TCP 的场景。
// TCP 不提供原生多路复用，连接经 Upgrader 完成 Noise 握手与 yamux 复用。
//
// 地址格式：
//
//	/ip4/<ip>/tcp/<port>
//	/ip6/<ip>/tcp/<port>
//	/dns4/<host>/tcp/<port>
package tcp
