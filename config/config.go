package config

// Config 是节点的完整配置结构
//
// 配置按照功能模块组织：
//   - Identity: 身份和密钥文件
//   - Transport: 传输协议（QUIC/TCP/WebSocket/WebRTC/电路中继）
//   - Relay: 中继预约与中继服务
//   - Gater: 连接黑名单
//   - Discovery: 引导节点与 DHT
//   - Identify / Liveness / AutoNAT: 基础协议
//   - PubSub: gossip 参数
//   - Topic: 订阅的聊天主题
//   - Log / Metrics: 日志与指标
type Config struct {
	Identity  IdentityConfig  `json:"identity" yaml:"identity"`
	Transport TransportConfig `json:"transport" yaml:"transport"`
	Relay     RelayConfig     `json:"relay" yaml:"relay"`
	Gater     GaterConfig     `json:"gater" yaml:"gater"`
	Discovery DiscoveryConfig `json:"discovery" yaml:"discovery"`
	Identify  IdentifyConfig  `json:"identify" yaml:"identify"`
	Liveness  LivenessConfig  `json:"liveness" yaml:"liveness"`
	AutoNAT   AutoNATConfig   `json:"autonat" yaml:"autonat"`
	PubSub    PubSubConfig    `json:"pubsub" yaml:"pubsub"`
	Log       LogConfig       `json:"log" yaml:"log"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`

	// Topic 节点订阅的唯一主题
	Topic string `json:"topic" yaml:"topic" validate:"required"`
}

// NewConfig 创建默认配置
//
// 默认值与浏览器版节点保持一致。
func NewConfig() *Config {
	return &Config{
		Identity:  DefaultIdentityConfig(),
		Transport: DefaultTransportConfig(),
		Relay:     DefaultRelayConfig(),
		Gater:     DefaultGaterConfig(),
		Discovery: DefaultDiscoveryConfig(),
		Identify:  DefaultIdentifyConfig(),
		Liveness:  DefaultLivenessConfig(),
		AutoNAT:   DefaultAutoNATConfig(),
		PubSub:    DefaultPubSubConfig(),
		Log:       DefaultLogConfig(),
		Metrics:   DefaultMetricsConfig(),
		Topic:     DefaultTopic,
	}
}

// Validate 验证配置的有效性
//
// 先做结构体标签校验，再做各子配置的交叉校验（地址语法等）。
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return wrapValidationError(err)
	}
	if err := c.Transport.Validate(); err != nil {
		return err
	}
	if err := c.Discovery.Validate(); err != nil {
		return err
	}
	return nil
}

// Clone 深拷贝配置
func (c *Config) Clone() *Config {
	out := *c
	out.Transport.ListenAddrs = append([]string(nil), c.Transport.ListenAddrs...)
	out.Transport.ICEServers = append([]string(nil), c.Transport.ICEServers...)
	out.Discovery.BootstrapPeers = append([]string(nil), c.Discovery.BootstrapPeers...)
	out.AutoNAT.STUNServers = append([]string(nil), c.AutoNAT.STUNServers...)
	out.Gater.BlockedPeers = append([]string(nil), c.Gater.BlockedPeers...)
	out.Gater.BlockedCIDRs = append([]string(nil), c.Gater.BlockedCIDRs...)
	return &out
}
