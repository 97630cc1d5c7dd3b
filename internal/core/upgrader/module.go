package upgrader

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/core/security/noise"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
)

// Params Upgrader 依赖参数
type Params struct {
	fx.In

	Identity pkgif.Identity
	Config   *config.Config
	Logger   *slog.Logger
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("upgrader",
		fx.Provide(ProvideUpgrader),
	)
}

// ProvideUpgrader 提供 Upgrader
func ProvideUpgrader(p Params) (pkgif.Upgrader, error) {
	logger := log.Component(p.Logger, "core/upgrader")
	sec, err := noise.New(p.Identity.PrivateKey(), logger)
	if err != nil {
		return nil, err
	}
	return New(sec, p.Config.Transport.HandshakeTimeout.Duration(), logger), nil
}
