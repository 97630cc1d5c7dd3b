package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-ucnode/config"
)

// Params Metrics 依赖参数
type Params struct {
	fx.In

	Config *config.Config

	// Registry 外部注入的 Registry（WithMetricsRegistry）
	Registry *prometheus.Registry `optional:"true"`
}

// Module 返回 metrics 的 Fx 模块
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(Provide),
	)
}

// Provide 创建节点指标
func Provide(p Params) *Metrics {
	if p.Registry != nil {
		return NewWithRegistry(p.Config.Metrics.Namespace, p.Registry)
	}
	return New(p.Config.Metrics.Namespace)
}
