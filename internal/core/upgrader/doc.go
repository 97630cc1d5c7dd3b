// Package upgrader 实现连接升级器
//
// 原始字节流连接（TCP、WebSocket、中继电路）经过以下步骤成为可用连接：
//
//  1. multistream-select 协商安全协议（/noise）
//  2. Noise XX 握手，确定对端身份
//  3. multistream-select 协商多路复用协议（/yamux/1.0.0）
//  4. 建立 yamux 会话
//
// QUIC 与 WebRTC 自带加密和多路复用，不经过升级器。
package upgrader
