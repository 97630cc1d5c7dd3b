// Package webtransport 提供 WebTransport 拨号传输
//
// 浏览器节点以 WebTransport 连接公共引导节点。本包只实现拨号方：
// 通过 HTTP/3 CONNECT 建立会话，在第一条流上完成 Noise XX 握手，
// 随后会话中的每条 WebTransport 流就是一条复用流，不再经过 yamux。
//
// 地址格式：
//
//	/ip4/<ip>/udp/<port>/quic-v1/webtransport/certhash/<mb>...
//	/dns4/<host>/udp/<port>/quic-v1/webtransport
//
// 带 certhash 时服务端证书是自签名的，按证书哈希校验，且有效期不得超过 14 天；
// Noise 握手中服务端通告的证书哈希必须包含拨号地址中的全部哈希。
// 不带 certhash 时按常规 CA 链与主机名校验。
package webtransport
