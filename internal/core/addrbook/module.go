package addrbook

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

	Identity pkgif.Identity
	Bus      pkgif.EventBus
	Logger   *slog.Logger
}

// Result 模块输出
type Result struct {
	fx.Out

	Book        *Book
	AddressBook pkgif.AddressBook
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("addrbook",
		fx.Provide(Provide),
		fx.Invoke(registerLifecycle),
	)
}

// Provide 创建地址簿
func Provide(p Params) (Result, error) {
	b, err := New(p.Identity.PeerID(), p.Bus, log.Component(p.Logger, "core/addrbook"))
	if err != nil {
		return Result{}, err
	}
	return Result{Book: b, AddressBook: b}, nil
}

func registerLifecycle(lc fx.Lifecycle, b *Book) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return b.Close()
		},
	})
}
