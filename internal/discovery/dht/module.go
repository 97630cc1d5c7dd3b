package dht

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/dep2p/go-ucnode/config"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config
	Host   pkgif.Host
	Logger *slog.Logger
}

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	DHT       *DHT
	Routing   pkgif.Routing
	Mechanism pkgif.DiscoveryMechanism `group:"discovery"`
}

// ProvideDHT 创建 DHT
func ProvideDHT(input ModuleInput) ModuleOutput {
	d := New(input.Host, input.Config.Discovery.DHT, log.Component(input.Logger, "discovery/dht"))
	return ModuleOutput{DHT: d, Routing: d, Mechanism: d}
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("dht",
		fx.Provide(ProvideDHT),
		fx.Invoke(registerLifecycle),
	)
}

// registerLifecycle 未启用时 DHT 保持未启动，路由表为空
func registerLifecycle(lc fx.Lifecycle, cfg *config.Config, d *DHT) {
	if !cfg.Discovery.DHT.Enable {
		return
	}
	lc.Append(fx.Hook{
		OnStart: d.Start,
		OnStop: func(context.Context) error {
			return d.Stop()
		},
	})
}
