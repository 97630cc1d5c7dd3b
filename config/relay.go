package config

import "time"

// RelayConfig 中继配置
type RelayConfig struct {
	// DiscoverRelays 客户端尝试维持的中继预约数量
	DiscoverRelays int `json:"discover_relays" yaml:"discover_relays" validate:"gte=0"`

	// ReservationRefresh 预约续期间隔，应小于中继授予的有效期
	ReservationRefresh Duration `json:"reservation_refresh" yaml:"reservation_refresh" validate:"gt=0"`

	// EnableHop 作为中继为其他节点转发
	EnableHop bool `json:"enable_hop" yaml:"enable_hop"`

	// ReservationTTL 中继授予预约的有效期
	ReservationTTL Duration `json:"reservation_ttl" yaml:"reservation_ttl" validate:"gt=0"`

	// MaxReservations 中继同时保存的预约数上限
	MaxReservations int `json:"max_reservations" yaml:"max_reservations" validate:"gte=0"`

	// MaxCircuits 每个预约节点同时存在的电路上限
	MaxCircuits int `json:"max_circuits" yaml:"max_circuits" validate:"gte=0"`

	// CircuitDuration 单条电路的最长持续时间
	CircuitDuration Duration `json:"circuit_duration" yaml:"circuit_duration" validate:"gt=0"`

	// CircuitData 单条电路单方向最多转发的字节数
	CircuitData int64 `json:"circuit_data" yaml:"circuit_data" validate:"gte=0"`
}

// DefaultRelayConfig 返回默认中继配置
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		DiscoverRelays:     10,
		ReservationRefresh: Duration(45 * time.Minute),
		EnableHop:          false,
		ReservationTTL:     Duration(time.Hour),
		MaxReservations:    128,
		MaxCircuits:        16,
		CircuitDuration:    Duration(2 * time.Minute),
		CircuitData:        1 << 17,
	}
}
