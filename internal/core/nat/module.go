package nat

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/core/host"
	"github.com/dep2p/go-ucnode/internal/core/nat/stun"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config
	Host   *host.Host
	Logger *slog.Logger
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	AutoNAT *AutoNAT
	Server  *Server
}

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	cfg := input.Config.AutoNAT
	logger := log.Component(input.Logger, "nat")

	var opts []ClientOption
	if cfg.EnableSTUN && len(cfg.STUNServers) > 0 {
		opts = append(opts, WithExternalAddrResolver(stun.NewClient(cfg.STUNServers)))
	}
	client, err := NewAutoNAT(input.Host, cfg, logger, opts...)
	if err != nil {
		return ModuleOutput{}, err
	}
	return ModuleOutput{
		AutoNAT: client,
		Server:  NewServer(input.Host, logger),
	}, nil
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("nat",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

type lifecycleInput struct {
	fx.In

	LC      fx.Lifecycle
	Config  *config.Config
	AutoNAT *AutoNAT
	Server  *Server
}

// registerLifecycle 注册生命周期
//
// 禁用时两者都不启动，可达性保持 Unknown。
func registerLifecycle(in lifecycleInput) {
	if !in.Config.AutoNAT.Enable {
		return
	}
	in.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			in.Server.Start()
			return in.AutoNAT.Start(ctx)
		},
		OnStop: func(context.Context) error {
			in.Server.Stop()
			return in.AutoNAT.Stop()
		},
	})
}
