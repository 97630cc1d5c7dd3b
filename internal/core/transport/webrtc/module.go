package webrtc

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/core/host"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config   *config.Config
	Host     *host.Host
	Upgrader pkgif.Upgrader
	Logger   *slog.Logger
}

// ProvideTransport 创建 WebRTC 传输
//
// 信令依赖中继连接，未启用电路中继时返回 nil。
func ProvideTransport(input ModuleInput) *Transport {
	cfg := input.Config.Transport
	if !cfg.EnableWebRTC || !cfg.EnableCircuitRelay {
		return nil
	}
	return New(input.Host, input.Upgrader, cfg.ICEServers, log.Component(input.Logger, "transport/webrtc"))
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("webrtc",
		fx.Provide(ProvideTransport),
		fx.Invoke(registerLifecycle),
	)
}

// registerLifecycle 在 Host 监听前把传输加入 Swarm
func registerLifecycle(lc fx.Lifecycle, swarm pkgif.Swarm, t *Transport) error {
	if t == nil {
		return nil
	}
	if err := swarm.AddTransport(t); err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return t.Close()
		},
	})
	return nil
}
