package config

// GaterConfig 连接门控配置
//
// 被阻止的节点与网段在拨号前和入站握手后都会被拒绝。
type GaterConfig struct {
	// BlockedPeers 拒绝连接的节点 ID（Base58）
	BlockedPeers []string `json:"blocked_peers,omitempty" yaml:"blocked_peers,omitempty"`

	// BlockedCIDRs 拒绝连接的网段
	BlockedCIDRs []string `json:"blocked_cidrs,omitempty" yaml:"blocked_cidrs,omitempty" validate:"dive,cidr"`
}

// DefaultGaterConfig 返回默认门控配置（不阻止任何连接）
func DefaultGaterConfig() GaterConfig {
	return GaterConfig{}
}
