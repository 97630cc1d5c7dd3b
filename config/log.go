package config

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别
	Level string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`

	// Format 输出格式
	Format string `json:"format" yaml:"format" validate:"oneof=text json"`

	// File 输出文件，为空时输出到 stderr
	File string `json:"file,omitempty" yaml:"file,omitempty"`

	// FxDebug 输出 fx 装配事件
	FxDebug bool `json:"fx_debug" yaml:"fx_debug"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// Namespace 指标命名空间
	Namespace string `json:"namespace" yaml:"namespace" validate:"required"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{Namespace: "ucnode"}
}
