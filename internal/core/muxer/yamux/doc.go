// Package yamux 提供基于 hashicorp/yamux 的流多路复用
//
// 在 Noise 安全连接之上建立 yamux 会话，协议标识 /yamux/1.0.0。
// yamux 的 Close 发送 FIN，是写方向的半关闭，读方向仍可读取到对端 FIN 为止。
package yamux
