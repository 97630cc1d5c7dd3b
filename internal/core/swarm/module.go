package swarm

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/core/metrics"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
)

// Params Swarm 依赖参数
type Params struct {
	fx.In

	Config    *config.Config
	Identity  pkgif.Identity
	Peerstore pkgif.Peerstore
	EventBus  pkgif.EventBus
	Logger    *slog.Logger
	Metrics   *metrics.Metrics      `optional:"true"`
	Gater     pkgif.ConnectionGater `optional:"true"`

	// value group 不能标记 optional
	Transports []pkgif.Transport `group:"transports"`
}

// Result Swarm 模块输出
type Result struct {
	fx.Out

	Swarm      *Swarm
	SwarmIface pkgif.Swarm
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("swarm",
		fx.Provide(Provide),
		fx.Invoke(registerLifecycle),
	)
}

// Provide 创建 Swarm 并注册全部直连传输
//
// 没有任何传输时返回 ErrNoTransports。
func Provide(p Params) (Result, error) {
	if len(p.Transports) == 0 {
		return Result{}, ErrNoTransports
	}
	s := New(p.Identity.PeerID(), p.Peerstore,
		WithLogger(log.Component(p.Logger, "core/swarm")),
		WithMetrics(p.Metrics),
		WithEventBus(p.EventBus),
		WithGater(p.Gater),
		WithDialTimeout(p.Config.Transport.DialTimeout.Duration()),
	)
	for _, t := range p.Transports {
		if err := s.AddTransport(t); err != nil {
			return Result{}, err
		}
	}
	return Result{Swarm: s, SwarmIface: s}, nil
}

func registerLifecycle(lc fx.Lifecycle, s *Swarm) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return s.Close()
		},
	})
}
