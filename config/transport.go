package config

import (
	"fmt"
	"time"

	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
)

// TransportConfig 传输层配置
//
// 浏览器节点使用 WebTransport、WebSocket、WebRTC、WebRTC-direct 与电路中继。
// 本节点以 QUIC 承担 UDP 监听，WebTransport 只用于拨号（公共引导节点），
// 另外提供 TCP 与 WebSocket（同时拨号 ws 与 wss），WebRTC 通过中继完成信令。
// WebRTC-direct 没有拨号实现，这类引导地址在启动时被报告并跳过。
type TransportConfig struct {
	// EnableQUIC 启用 QUIC 传输
	EnableQUIC bool `json:"enable_quic" yaml:"enable_quic"`

	// EnableWebTransport 启用 WebTransport 拨号
	EnableWebTransport bool `json:"enable_webtransport" yaml:"enable_webtransport"`

	// EnableTCP 启用 TCP 传输（Noise + yamux 升级）
	EnableTCP bool `json:"enable_tcp" yaml:"enable_tcp"`

	// EnableWebSocket 启用 WebSocket 传输（Noise + yamux 升级）
	EnableWebSocket bool `json:"enable_websocket" yaml:"enable_websocket"`

	// EnableWebRTC 启用经中继信令的 WebRTC 传输
	EnableWebRTC bool `json:"enable_webrtc" yaml:"enable_webrtc"`

	// EnableCircuitRelay 启用电路中继客户端传输
	EnableCircuitRelay bool `json:"enable_circuit_relay" yaml:"enable_circuit_relay"`

	// ListenAddrs 监听地址
	// 对应传输未启用的地址会被忽略
	ListenAddrs []string `json:"listen_addrs" yaml:"listen_addrs"`

	// ICEServers WebRTC 使用的 STUN/TURN 服务器
	ICEServers []string `json:"ice_servers" yaml:"ice_servers" validate:"dive,required"`

	// DialTimeout 单次拨号超时
	DialTimeout Duration `json:"dial_timeout" yaml:"dial_timeout" validate:"gt=0"`

	// HandshakeTimeout 安全握手与多路复用协商超时
	HandshakeTimeout Duration `json:"handshake_timeout" yaml:"handshake_timeout" validate:"gt=0"`
}

// DefaultICEServers 默认 ICE 服务器
var DefaultICEServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:global.stun.twilio.com:3478",
}

// DefaultTransportConfig 返回默认传输配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		EnableQUIC:         true,
		EnableWebTransport: true,
		EnableTCP:          true,
		EnableWebSocket:    true,
		EnableWebRTC:       true,
		EnableCircuitRelay: true,
		ListenAddrs: []string{
			"/ip4/0.0.0.0/udp/0/quic-v1",
			"/ip4/0.0.0.0/tcp/0",
			"/ip4/0.0.0.0/tcp/0/ws",
			"/p2p-circuit",
			"/webrtc",
		},
		ICEServers:       append([]string(nil), DefaultICEServers...),
		DialTimeout:      Duration(15 * time.Second),
		HandshakeTimeout: Duration(10 * time.Second),
	}
}

// Validate 验证传输配置
func (c TransportConfig) Validate() error {
	for _, s := range c.ListenAddrs {
		if _, err := multiaddr.NewMultiaddr(s); err != nil {
			return fmt.Errorf("listen address %q: %w", s, err)
		}
	}
	return nil
}

// WithListenAddrs 设置监听地址
func (c TransportConfig) WithListenAddrs(addrs ...string) TransportConfig {
	c.ListenAddrs = addrs
	return c
}
