// Package multiaddr 提供自描述网络地址（Multiaddr）的实现
//
// 地址由一串 /协议名/值 段组成，可在规范字符串形式与二进制形式之间无损转换。
// 复合地址（例如 "经由中继 Y 到达节点 X，再升级为直连"）通过字符串拼接或
// Encapsulate 构造。
//
// # 基本用法
//
//	ma, err := multiaddr.NewMultiaddr("/ip4/127.0.0.1/udp/4001/quic-v1")
//	if err != nil {
//	    return err
//	}
//
//	// 判断是否为中继地址
//	if ma.HasProtocol(multiaddr.P_CIRCUIT) { ... }
//
// # 错误
//
// 所有解析失败都返回 *ParseError，可通过 errors.As 取出原始输入与失败原因，
// 也可通过 errors.Is(err, ErrInvalidMultiaddr) 判断。
//
// # 支持的协议
//
// 协议代码与 multiformats/multicodec 表对齐：ip4、ip6、ip6zone、dns、dns4、dns6、
// dnsaddr、tcp、udp、quic、quic-v1、webtransport、certhash、webrtc-direct、webrtc、
// ws、wss、tls、sni、noise、http、https、unix、p2p、p2p-circuit。
package multiaddr
