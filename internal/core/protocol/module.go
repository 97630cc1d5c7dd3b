package protocol

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/core/host"
	"github.com/dep2p/go-ucnode/internal/core/protocol/system/identify"
	"github.com/dep2p/go-ucnode/internal/core/protocol/system/ping"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
)

// Params 系统协议依赖参数
type Params struct {
	fx.In

	Config   *config.Config
	Host     *host.Host
	Identity pkgif.Identity
	Book     pkgif.AddressBook
	Logger   *slog.Logger
}

// Result 系统协议输出
type Result struct {
	fx.Out

	Identify *identify.Service
	Ping     *ping.Service
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("protocol",
		fx.Provide(Provide),
		fx.Invoke(registerLifecycle),
	)
}

// Provide 创建 identify 与 ping 服务
func Provide(p Params) (Result, error) {
	id, err := identify.NewService(p.Host, p.Identity.PublicKey(), p.Book, p.Config.Identify,
		log.Component(p.Logger, "protocol/identify"))
	if err != nil {
		return Result{}, err
	}
	pg := ping.NewService(p.Host, p.Config.Liveness, log.Component(p.Logger, "protocol/ping"))
	return Result{Identify: id, Ping: pg}, nil
}

type lifecycleInput struct {
	fx.In

	LC       fx.Lifecycle
	Identify *identify.Service
	Ping     *ping.Service
}

// registerLifecycle 注册系统协议
//
// 所有节点都注册 ping 和 identify。
func registerLifecycle(in lifecycleInput) {
	in.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := in.Ping.Start(ctx); err != nil {
				return err
			}
			return in.Identify.Start(ctx)
		},
		OnStop: func(context.Context) error {
			return multierr.Combine(in.Identify.Stop(), in.Ping.Stop())
		},
	})
}
