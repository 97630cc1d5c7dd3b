// Package liveness 实现存活检测服务
package liveness

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Option 定义配置选项函数
type Option func(*Config)

// Config Liveness配置
type Config struct {
	// Interval 检测间隔，0 表示只在调用 Ping/Check 时检测
	Interval time.Duration

	// Timeout 单次检测的上限，0 表示只受调用方 ctx 约束
	Timeout time.Duration

	// FailThreshold 判定下线的失败阈值
	FailThreshold int

	// RTTWindowSize RTT滑动窗口大小
	RTTWindowSize int

	// Clock 时钟（测试注入）
	Clock clock.Clock
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Interval:      0,
		Timeout:       10 * time.Second,
		FailThreshold: 3,
		RTTWindowSize: 10,
		Clock:         clock.New(),
	}
}

// WithInterval 设置检测间隔
func WithInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.Interval = interval
	}
}

// WithTimeout 设置单次检测超时
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithFailThreshold 设置失败阈值
func WithFailThreshold(threshold int) Option {
	return func(c *Config) {
		c.FailThreshold = threshold
	}
}

// WithRTTWindowSize 设置RTT窗口大小
func WithRTTWindowSize(size int) Option {
	return func(c *Config) {
		c.RTTWindowSize = size
	}
}

// WithClock 设置时钟
func WithClock(c clock.Clock) Option {
	return func(cfg *Config) {
		cfg.Clock = c
	}
}
