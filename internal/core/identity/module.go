package identity

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/dep2p/go-ucnode/config"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger

	// PrivateKey 直接注入的私钥（WithIdentity），优先于配置
	PrivateKey crypto.PrivateKey `optional:"true"`
}

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Identity   pkgif.Identity
	PrivateKey crypto.PrivateKey `name:"node_key"`
}

// ProvideServices 提供模块服务
func ProvideServices(in ModuleInput) (ModuleOutput, error) {
	var (
		id  *Identity
		err error
	)
	if in.PrivateKey != nil {
		id, err = New(in.PrivateKey)
	} else {
		id, err = Load(in.Config.Identity)
	}
	if err != nil {
		return ModuleOutput{}, err
	}

	in.Logger.Info("node identity ready", "peer", id.PeerID().String())
	return ModuleOutput{Identity: id, PrivateKey: id.PrivateKey()}, nil
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("identity",
		fx.Provide(ProvideServices),
	)
}
