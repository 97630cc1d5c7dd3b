package gater

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-ucnode/config"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
)

// Result 模块输出
type Result struct {
	fx.Out

	Gater           *Gater
	ConnectionGater pkgif.ConnectionGater
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("gater",
		fx.Provide(Provide),
	)
}

// Provide 按配置创建门控器
func Provide(cfg *config.Config) (Result, error) {
	g, err := FromConfig(cfg.Gater)
	if err != nil {
		return Result{}, err
	}
	return Result{Gater: g, ConnectionGater: g}, nil
}
