package config

import "time"

// IdentifyConfig identify 协议配置
type IdentifyConfig struct {
	MaxInboundStreams      int `json:"max_inbound_streams" yaml:"max_inbound_streams" validate:"gt=0"`
	MaxOutboundStreams     int `json:"max_outbound_streams" yaml:"max_outbound_streams" validate:"gt=0"`
	MaxPushIncomingStreams int `json:"max_push_incoming_streams" yaml:"max_push_incoming_streams" validate:"gt=0"`
	MaxPushOutgoingStreams int `json:"max_push_outgoing_streams" yaml:"max_push_outgoing_streams" validate:"gt=0"`

	// Timeout 单次 identify 交换超时
	Timeout Duration `json:"timeout" yaml:"timeout" validate:"gt=0"`

	// AgentVersion 对外报告的代理版本
	AgentVersion string `json:"agent_version" yaml:"agent_version"`
}

// DefaultIdentifyConfig 返回默认 identify 配置
func DefaultIdentifyConfig() IdentifyConfig {
	return IdentifyConfig{
		MaxInboundStreams:      1000,
		MaxOutboundStreams:     1000,
		MaxPushIncomingStreams: 1000,
		MaxPushOutgoingStreams: 1000,
		Timeout:                Duration(10 * time.Second),
		AgentVersion:           "ucnode/0.1.0",
	}
}
