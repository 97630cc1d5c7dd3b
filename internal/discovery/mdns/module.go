package mdns

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
	Book   pkgif.AddressBook
	Logger *slog.Logger
}

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Service   *Service
	Mechanism pkgif.DiscoveryMechanism `group:"discovery"`
}

// ProvideService 创建 mDNS 服务
func ProvideService(input ModuleInput) ModuleOutput {
	svc := New(input.Host, input.Book, input.Config.Discovery.MDNS, log.Component(input.Logger, "discovery/mdns"))
	return ModuleOutput{Service: svc, Mechanism: svc}
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("mdns",
		fx.Provide(ProvideService),
		fx.Invoke(registerLifecycle),
	)
}

func registerLifecycle(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStart: svc.Start,
		OnStop: func(context.Context) error {
			return svc.Stop()
		},
	})
}
