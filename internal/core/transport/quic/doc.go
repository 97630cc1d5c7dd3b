// Package quic 提供基于 QUIC 的传输层实现
//
// QUIC 自带 TLS 1.3 加密与流复用，不经过 Upgrader。
// 身份认证采用自签名证书：证书密钥为临时 ECDSA P-256 密钥，
// 证书扩展中携带节点公钥以及节点私钥对证书公钥的签名，
// 对端据此验证并派生 PeerID。
//
// 地址格式：
//
//	/ip4/<ip>/udp/<port>/quic-v1
//	/ip6/<ip>/udp/<port>/quic-v1
//
// 同一 Transport 的监听与拨号共享 UDP socket（quic.Transport），
// 出站连接的源端口与监听端口一致，有利于 NAT 映射。
package quic
