package config

import "time"

// LivenessConfig ping 协议配置
type LivenessConfig struct {
	MaxInboundStreams  int `json:"max_inbound_streams" yaml:"max_inbound_streams" validate:"gt=0"`
	MaxOutboundStreams int `json:"max_outbound_streams" yaml:"max_outbound_streams" validate:"gt=0"`

	// Timeout 单次 ping 超时
	Timeout Duration `json:"timeout" yaml:"timeout" validate:"gt=0"`

	// Interval 对已连接节点周期 ping 的间隔，0 表示不主动 ping
	Interval Duration `json:"interval" yaml:"interval" validate:"gte=0"`
}

// DefaultLivenessConfig 返回默认 ping 配置
func DefaultLivenessConfig() LivenessConfig {
	return LivenessConfig{
		MaxInboundStreams:  32,
		MaxOutboundStreams: 64,
		Timeout:            Duration(10 * time.Second),
		Interval:           Duration(30 * time.Second),
	}
}
