package host

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/dep2p/go-ucnode/config"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
)

// Params Host 依赖参数
type Params struct {
	fx.In

	Config   *config.Config
	Swarm    pkgif.Swarm
	EventBus pkgif.EventBus
	Book     pkgif.AddressBook
	Logger   *slog.Logger
}

// Result Host 模块输出
type Result struct {
	fx.Out

	Host      *Host
	HostIface pkgif.Host
}

// Module 返回 Fx 模块
//
// 启动时在配置的地址上监听，没有任何地址监听成功时启动失败。
func Module() fx.Option {
	return fx.Module("host",
		fx.Provide(Provide),
		fx.Invoke(registerLifecycle),
	)
}

// Provide 创建 Host
func Provide(p Params) Result {
	h := New(p.Swarm, p.EventBus, p.Book, log.Component(p.Logger, "core/host"))
	return Result{Host: h, HostIface: h}
}

func registerLifecycle(lc fx.Lifecycle, h *Host, cfg *config.Config) error {
	addrs, err := multiaddr.ParseStrings(cfg.Transport.ListenAddrs)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if len(addrs) == 0 {
				return nil
			}
			return h.Listen(addrs...)
		},
		OnStop: func(context.Context) error {
			return h.Close()
		},
	})
	return nil
}
