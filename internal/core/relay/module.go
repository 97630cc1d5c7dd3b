package relay

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/core/host"
	"github.com/dep2p/go-ucnode/internal/core/metrics"
	"github.com/dep2p/go-ucnode/internal/core/relay/client"
	"github.com/dep2p/go-ucnode/internal/core/relay/server"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config   *config.Config
	Host     *host.Host
	Upgrader pkgif.Upgrader
	Metrics  *metrics.Metrics `optional:"true"`
	Logger   *slog.Logger
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
//
// 未启用的组件为 nil。
type ModuleOutput struct {
	fx.Out

	Transport    *client.Transport
	Reservations *client.Reservations
	Server       *server.Server
}

// ProvideServices 按配置创建中继组件
func ProvideServices(input ModuleInput) ModuleOutput {
	var out ModuleOutput
	logger := log.Component(input.Logger, "core/relay")
	cfg := input.Config.Relay

	if input.Config.Transport.EnableCircuitRelay {
		out.Transport = client.New(input.Host, input.Upgrader, logger)
		out.Reservations = client.NewReservations(input.Host, cfg, input.Metrics, logger)
	}
	if cfg.EnableHop {
		out.Server = server.New(input.Host, cfg, log.Component(input.Logger, "core/relay/hop"))
	}
	return out
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("relay",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

type lifecycleInput struct {
	fx.In

	LC           fx.Lifecycle
	Swarm        pkgif.Swarm
	Transport    *client.Transport
	Reservations *client.Reservations
	Server       *server.Server
}

// registerLifecycle 注册电路传输并挂接启停
//
// 传输在 Invoke 阶段注册，早于 Host 在 /p2p-circuit 上监听。
func registerLifecycle(in lifecycleInput) error {
	if in.Transport != nil {
		if err := in.Swarm.AddTransport(in.Transport); err != nil {
			return err
		}
	}
	in.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if in.Server != nil {
				in.Server.Start()
			}
			if in.Reservations != nil {
				return in.Reservations.Start(ctx)
			}
			return nil
		},
		OnStop: func(context.Context) error {
			var err error
			if in.Reservations != nil {
				err = multierr.Append(err, in.Reservations.Stop())
			}
			if in.Server != nil {
				err = multierr.Append(err, in.Server.Stop())
			}
			if in.Transport != nil {
				err = multierr.Append(err, in.Transport.Close())
			}
			return err
		},
	})
	return nil
}
