package config

import "time"

// DefaultTopic 默认聊天主题
const DefaultTopic = "universal-connectivity"

// 签名策略
const (
	SignaturePolicyStrictSign   = "strict-sign"
	SignaturePolicyStrictNoSign = "strict-no-sign"
)

// PubSubConfig gossip 配置
type PubSubConfig struct {
	// AllowPublishToZeroPeers 没有订阅者时发布不报错
	AllowPublishToZeroPeers bool `json:"allow_publish_to_zero_peers" yaml:"allow_publish_to_zero_peers"`

	// IgnoreDuplicatePublishError 发布重复消息时不报错
	IgnoreDuplicatePublishError bool `json:"ignore_duplicate_publish_error" yaml:"ignore_duplicate_publish_error"`

	// MessageIDFn 消息标识函数名
	MessageIDFn string `json:"message_id_fn" yaml:"message_id_fn" validate:"omitempty,oneof=seqno"`

	// SignaturePolicy 签名策略
	SignaturePolicy string `json:"signature_policy" yaml:"signature_policy" validate:"oneof=strict-sign strict-no-sign"`

	// SeenTTL 已见消息缓存有效期
	SeenTTL Duration `json:"seen_ttl" yaml:"seen_ttl" validate:"gt=0"`

	// SeenCacheSize 已见消息缓存容量
	SeenCacheSize int `json:"seen_cache_size" yaml:"seen_cache_size" validate:"gt=0"`

	// MaxMessageSize 单条 RPC 最大字节数
	MaxMessageSize int `json:"max_message_size" yaml:"max_message_size" validate:"gt=0"`

	// MeshDegree 每个主题转发的目标节点数
	MeshDegree int `json:"mesh_degree" yaml:"mesh_degree" validate:"gt=0"`

	// HeartbeatInterval 心跳间隔
	HeartbeatInterval Duration `json:"heartbeat_interval" yaml:"heartbeat_interval" validate:"gt=0"`
}

// DefaultPubSubConfig 返回默认 gossip 配置
func DefaultPubSubConfig() PubSubConfig {
	return PubSubConfig{
		AllowPublishToZeroPeers:     true,
		IgnoreDuplicatePublishError: true,
		MessageIDFn:                 "seqno",
		SignaturePolicy:             SignaturePolicyStrictSign,
		SeenTTL:                     Duration(2 * time.Minute),
		SeenCacheSize:               10000,
		MaxMessageSize:              1 << 20,
		MeshDegree:                  6,
		HeartbeatInterval:           Duration(time.Second),
	}
}
