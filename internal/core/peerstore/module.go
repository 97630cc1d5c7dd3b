package peerstore

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
)

// Params 模块输入
type Params struct {
	fx.In

	Bus    pkgif.EventBus
	Logger *slog.Logger
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("peerstore",
		fx.Provide(Provide),
		fx.Provide(func(ps *Peerstore) pkgif.Peerstore { return ps }),
	)
}

// Provide 创建 Peerstore 并注册生命周期
func Provide(lc fx.Lifecycle, p Params) (*Peerstore, error) {
	ps, err := New(DefaultMaxPeers,
		WithLogger(log.Component(p.Logger, "core/peerstore")),
		WithEventBus(p.Bus))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return ps.Close() },
	})
	return ps, nil
}
