// Package liveness 实现存活检测服务
package liveness

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/core/protocol/system/ping"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config
	Host   pkgif.Host
	Ping   *ping.Service
	Logger *slog.Logger
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("liveness",
		fx.Provide(ProvideService),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideService 创建 Liveness 服务
func ProvideService(in ModuleInput) (*Service, error) {
	cfg := in.Config.Liveness
	return New(in.Host, in.Ping, log.Component(in.Logger, "protocol/liveness"),
		WithInterval(cfg.Interval.Duration()),
		WithTimeout(cfg.Timeout.Duration()))
}

func registerLifecycle(lc fx.Lifecycle, s *Service) {
	lc.Append(fx.Hook{
		OnStart: s.Start,
		OnStop: func(context.Context) error {
			return s.Stop()
		},
	})
}
