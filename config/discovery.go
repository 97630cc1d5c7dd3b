package config

import (
	"fmt"
	"time"

	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
)

// 公共引导节点
//
// 两个地址指向同一个公网节点，分别通过 WebRTC-direct 与 WebTransport 暴露。
const (
	WebRTCBootstrapNode       = "/ip4/18.195.246.16/udp/9090/webrtc-direct/certhash/uEiA8EDMfADmULSe2Bm1vVDSmN2RQPvY5MXkEZVOSyD1y2w/p2p/12D3KooWSmtsbL2ukwVwf8gDoTYZHnCd7sVNNVdMnCa4MkWjLujm"
	WebTransportBootstrapNode = "/ip4/18.195.246.16/udp/9095/quic-v1/webtransport/certhash/uEiAnrH0eWNQMtMlsdEZ8LLpgq6BYMrYbdUP1N8Hb-FJADw/certhash/uEiAK0QvzMdEzKDxL-dxHrVp0p-AjrTXBhOkgl3XGPXV0YA/p2p/12D3KooWSmtsbL2ukwVwf8gDoTYZHnCd7sVNNVdMnCa4MkWjLujm"
)

// DiscoveryConfig 节点发现配置
type DiscoveryConfig struct {
	// EnableBootstrap 启用引导节点连接
	EnableBootstrap bool `json:"enable_bootstrap" yaml:"enable_bootstrap"`

	// BootstrapPeers 引导节点地址，必须携带 /p2p/<id>，或为 /dnsaddr/<domain>
	BootstrapPeers []string `json:"bootstrap_peers" yaml:"bootstrap_peers"`

	// BootstrapMinBackoff 引导重连最小退避
	BootstrapMinBackoff Duration `json:"bootstrap_min_backoff" yaml:"bootstrap_min_backoff" validate:"gt=0"`

	// BootstrapMaxBackoff 引导重连最大退避
	BootstrapMaxBackoff Duration `json:"bootstrap_max_backoff" yaml:"bootstrap_max_backoff" validate:"gtefield=BootstrapMinBackoff"`

	// DNSServer 解析 /dnsaddr 使用的服务器（host:port），为空时读取 /etc/resolv.conf
	DNSServer string `json:"dns_server,omitempty" yaml:"dns_server,omitempty" validate:"omitempty,hostname_port"`

	// DHT 分布式哈希表配置
	DHT DHTConfig `json:"dht" yaml:"dht"`

	// MDNS 局域网多播发现配置
	MDNS MDNSConfig `json:"mdns" yaml:"mdns"`
}

// MDNSConfig 局域网多播发现配置
type MDNSConfig struct {
	// Enable 启用 mDNS 发现
	Enable bool `json:"enable" yaml:"enable"`

	// ServiceTag 服务标签，只有相同标签的节点互相发现
	ServiceTag string `json:"service_tag" yaml:"service_tag" validate:"required"`

	// QueryInterval 查询间隔
	QueryInterval Duration `json:"query_interval" yaml:"query_interval" validate:"gt=0"`

	// QueryTimeout 单次查询等待响应的时间
	QueryTimeout Duration `json:"query_timeout" yaml:"query_timeout" validate:"gt=0,ltefield=QueryInterval"`
}

// DHTConfig Kademlia DHT 配置
type DHTConfig struct {
	// Enable 启用 DHT
	Enable bool `json:"enable" yaml:"enable"`

	// ProtocolPrefix 协议前缀，协议 ID 为 <prefix>/kad/1.0.0
	ProtocolPrefix string `json:"protocol_prefix" yaml:"protocol_prefix" validate:"required,startswith=/"`

	// ClientMode 客户端模式：只发起查询，不响应查询
	ClientMode bool `json:"client_mode" yaml:"client_mode"`

	// MaxInboundStreams 入站流上限
	MaxInboundStreams int `json:"max_inbound_streams" yaml:"max_inbound_streams" validate:"gt=0"`

	// MaxOutboundStreams 出站流上限
	MaxOutboundStreams int `json:"max_outbound_streams" yaml:"max_outbound_streams" validate:"gt=0"`

	// BucketSize K 桶大小
	BucketSize int `json:"bucket_size" yaml:"bucket_size" validate:"gt=0"`

	// Alpha 查询并发度
	Alpha int `json:"alpha" yaml:"alpha" validate:"gt=0"`

	// QueryTimeout 单次查询超时
	QueryTimeout Duration `json:"query_timeout" yaml:"query_timeout" validate:"gt=0"`

	// RefreshInterval 路由表刷新间隔
	RefreshInterval Duration `json:"refresh_interval" yaml:"refresh_interval" validate:"gt=0"`
}

// DefaultDiscoveryConfig 返回默认发现配置
func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		EnableBootstrap: true,
		BootstrapPeers: []string{
			WebRTCBootstrapNode,
			WebTransportBootstrapNode,
		},
		BootstrapMinBackoff: Duration(5 * time.Second),
		BootstrapMaxBackoff: Duration(10 * time.Minute),
		DHT: DHTConfig{
			Enable:             true,
			ProtocolPrefix:     "/universal-connectivity",
			ClientMode:         true,
			MaxInboundStreams:  5000,
			MaxOutboundStreams: 5000,
			BucketSize:         20,
			Alpha:              3,
			QueryTimeout:       Duration(30 * time.Second),
			RefreshInterval:    Duration(10 * time.Minute),
		},
		MDNS: MDNSConfig{
			ServiceTag:    "_ucnode._udp",
			QueryInterval: Duration(time.Minute),
			QueryTimeout:  Duration(5 * time.Second),
		},
	}
}

// Validate 验证发现配置
func (c DiscoveryConfig) Validate() error {
	for _, s := range c.BootstrapPeers {
		ma, err := multiaddr.NewMultiaddr(s)
		if err != nil {
			return fmt.Errorf("bootstrap peer %q: %w", s, err)
		}
		if ma.HasProtocol(multiaddr.P_DNSADDR) {
			continue
		}
		if _, err := ma.ValueForProtocol(multiaddr.P_P2P); err != nil {
			return fmt.Errorf("bootstrap peer %q: missing /p2p component", s)
		}
	}
	return nil
}

// WithBootstrapPeers 设置引导节点
func (c DiscoveryConfig) WithBootstrapPeers(peers ...string) DiscoveryConfig {
	c.BootstrapPeers = peers
	return c
}
