package pubsub

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/core/metrics"
	"github.com/dep2p/go-ucnode/internal/core/msgid"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	Config     *config.Config
	Host       pkgif.Host
	PrivateKey crypto.PrivateKey `name:"node_key"`
	Metrics    *metrics.Metrics  `optional:"true"`
	Logger     *slog.Logger

	// MessageIDFn 外部注入的标识函数（WithMessageIDFn），优先于配置
	MessageIDFn msgid.Func `optional:"true"`
}

// ModuleOutput 模块输出
type ModuleOutput struct {
	fx.Out

	PubSub  *PubSub
	Channel pkgif.GossipChannel
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("pubsub",
		fx.Provide(ProvideService),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideService 创建 PubSub
func ProvideService(in ModuleInput) ModuleOutput {
	ps := New(in.Host, in.PrivateKey, in.Config.PubSub, log.Component(in.Logger, "protocol/pubsub"),
		WithMetrics(in.Metrics),
		WithMessageIDFn(in.MessageIDFn))
	return ModuleOutput{PubSub: ps, Channel: ps}
}

func registerLifecycle(lc fx.Lifecycle, ps *PubSub) {
	lc.Append(fx.Hook{
		OnStart: ps.Start,
		OnStop: func(context.Context) error {
			return ps.Close()
		},
	})
}
