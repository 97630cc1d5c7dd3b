package config

import "time"

// AutoNATConfig 可达性探测配置
type AutoNATConfig struct {
	// Enable 启用 AutoNAT 客户端与服务
	Enable bool `json:"enable" yaml:"enable"`

	// StartupDelay 首次探测前的等待时间
	StartupDelay Duration `json:"startup_delay" yaml:"startup_delay" validate:"gte=0"`

	// RefreshInterval 两次探测之间的间隔
	RefreshInterval Duration `json:"refresh_interval" yaml:"refresh_interval" validate:"gt=0"`

	// MaxProbePeers 每轮探测询问的节点数
	MaxProbePeers int `json:"max_probe_peers" yaml:"max_probe_peers" validate:"gt=0"`

	// EnableSTUN 通过 STUN 获取外部地址
	EnableSTUN bool `json:"enable_stun" yaml:"enable_stun"`

	// STUNServers STUN 服务器（host:port）
	STUNServers []string `json:"stun_servers" yaml:"stun_servers" validate:"dive,hostname_port"`
}

// DefaultAutoNATConfig 返回默认可达性探测配置
func DefaultAutoNATConfig() AutoNATConfig {
	return AutoNATConfig{
		Enable:          true,
		StartupDelay:    Duration(24 * time.Hour),
		RefreshInterval: Duration(15 * time.Minute),
		MaxProbePeers:   3,
		EnableSTUN:      true,
		STUNServers: []string{
			"stun.l.google.com:19302",
			"global.stun.twilio.com:3478",
		},
	}
}
