package ucnode

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-ucnode/internal/core/addrbook"
	"github.com/dep2p/go-ucnode/internal/core/eventbus"
	"github.com/dep2p/go-ucnode/internal/core/gater"
	"github.com/dep2p/go-ucnode/internal/core/host"
	"github.com/dep2p/go-ucnode/internal/core/identity"
	"github.com/dep2p/go-ucnode/internal/core/metrics"
	"github.com/dep2p/go-ucnode/internal/core/msgid"
	"github.com/dep2p/go-ucnode/internal/core/nat"
	"github.com/dep2p/go-ucnode/internal/core/peerstore"
	"github.com/dep2p/go-ucnode/internal/core/protocol"
	"github.com/dep2p/go-ucnode/internal/core/relay"
	"github.com/dep2p/go-ucnode/internal/core/swarm"
	"github.com/dep2p/go-ucnode/internal/core/transport"
	"github.com/dep2p/go-ucnode/internal/core/transport/webrtc"
	"github.com/dep2p/go-ucnode/internal/core/upgrader"
	"github.com/dep2p/go-ucnode/internal/discovery/bootstrap"
	"github.com/dep2p/go-ucnode/internal/discovery/dht"
	"github.com/dep2p/go-ucnode/internal/discovery/mdns"
	"github.com/dep2p/go-ucnode/internal/protocol/liveness"
	"github.com/dep2p/go-ucnode/internal/protocol/pubsub"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
)

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. 基础: Config → Identity → EventBus → AddressBook → Metrics → Peerstore
//  2. 传输: Transports → Upgrader → Gater → Swarm → Host
//  3. 系统协议: Identify/Ping → Liveness → AutoNAT
//  4. 中继: Relay（client/hop）→ WebRTC
//  5. 发现: Bootstrap → DHT → mDNS
//  6. 传播: PubSub
//
// 代理传输（中继、WebRTC）在 Invoke 阶段加入 Swarm，早于 Host 监听。
// 各子系统按配置决定是否真正工作，模块本身总是加载。
func buildFxApp(o *options, logger *slog.Logger, node *Node) *fx.App {
	modules := []fx.Option{
		// 配置注入
		fx.Supply(o.config),
		fx.Supply(logger),

		// 基础组件
		identity.Module(),
		eventbus.Module(),
		addrbook.Module(),
		metrics.Module(),
		peerstore.Module(),

		// 传输层
		transport.Module(),
		upgrader.Module(),
		gater.Module(),
		swarm.Module(),
		host.Module(),

		// 系统协议
		protocol.Module(),
		liveness.Module(),
		nat.Module(),

		// 中继与 WebRTC
		relay.Module(),
		webrtc.Module(),

		// 发现层
		bootstrap.Module(),
		dht.Module(),
		mdns.Module(),

		// 主题消息
		pubsub.Module(),
	}

	// 选项注入
	if o.priv != nil {
		priv := o.priv
		modules = append(modules, fx.Provide(func() crypto.PrivateKey { return priv }))
	}
	if o.registry != nil {
		reg := o.registry
		modules = append(modules, fx.Provide(func() *prometheus.Registry { return reg }))
	}
	if o.idFn != nil {
		fn := o.idFn
		modules = append(modules, fx.Provide(func() msgid.Func { return fn }))
	}

	// 用户扩展
	modules = append(modules, o.fxOpts...)

	// Node 组件注入
	modules = append(modules,
		fx.Invoke(func(p nodeParams) { node.bind(p) }),
		fx.WithLogger(fxLogger(o.config.Log.FxDebug, logger)),
	)

	return fx.New(modules...)
}

// nodeParams Node 持有的组件
type nodeParams struct {
	fx.In

	Host      *host.Host
	Identity  pkgif.Identity
	Book      pkgif.AddressBook
	Gossip    pkgif.GossipChannel
	Routing   pkgif.Routing
	Metrics   *metrics.Metrics
	Discovery []pkgif.DiscoveryMechanism `group:"discovery"`
}

// fxLogger 返回 fx 事件日志
//
// 默认丢弃；FxDebug 时输出到 zap 开发者 logger。
func fxLogger(debug bool, logger *slog.Logger) func() fxevent.Logger {
	return func() fxevent.Logger {
		if debug {
			zl, err := zap.NewDevelopment()
			if err == nil {
				return &fxevent.ZapLogger{Logger: zl.Named("fx")}
			}
			logger.Warn("fx debug logger unavailable", "error", err)
		}
		return &fxevent.ZapLogger{Logger: zap.NewNop()}
	}
}
