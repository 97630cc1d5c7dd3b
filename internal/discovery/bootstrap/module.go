package bootstrap

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

	Service   *Service
	Mechanism pkgif.DiscoveryMechanism `group:"discovery"`
}

// ProvideService 解析引导地址并创建服务
//
// 地址无效时返回错误，节点组装失败。
func ProvideService(input ModuleInput) (ModuleOutput, error) {
	cfg := input.Config.Discovery
	var peers []Peer
	if cfg.EnableBootstrap {
		var err error
		peers, err = ParsePeers(cfg.BootstrapPeers)
		if err != nil {
			return ModuleOutput{}, err
		}
	}
	svc := New(input.Host, peers, cfg, log.Component(input.Logger, "discovery/bootstrap"))
	return ModuleOutput{Service: svc, Mechanism: svc}, nil
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("bootstrap",
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
