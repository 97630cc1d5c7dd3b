package ucnode

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/core/msgid"
	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
)

// Option 节点配置选项
type Option func(*options) error

// options 内部选项
type options struct {
	config   *config.Config
	logger   *slog.Logger
	priv     crypto.PrivateKey
	idFn     msgid.Func
	registry *prometheus.Registry
	fxOpts   []fx.Option

	// 以下覆盖在 WithConfig 之后应用，与选项顺序无关
	bootstrapPeers    []string
	bootstrapPeersSet bool
	listenAddrs       []string
	listenAddrsSet    bool
	transports        []string
}

func newOptions() *options {
	return &options{config: config.NewConfig()}
}

// apply 应用全部选项并合并覆盖项
func (o *options) apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return err
		}
	}

	cfg := o.config
	if o.bootstrapPeersSet {
		cfg.Discovery.BootstrapPeers = o.bootstrapPeers
	}
	if o.listenAddrsSet {
		cfg.Transport.ListenAddrs = o.listenAddrs
	}
	if o.transports != nil {
		cfg.Transport.EnableQUIC = false
		cfg.Transport.EnableWebTransport = false
		cfg.Transport.EnableTCP = false
		cfg.Transport.EnableWebSocket = false
		cfg.Transport.EnableWebRTC = false
		cfg.Transport.EnableCircuitRelay = false
		for _, name := range o.transports {
			switch name {
			case TransportQUIC:
				cfg.Transport.EnableQUIC = true
			case TransportWebTransport:
				cfg.Transport.EnableWebTransport = true
			case TransportTCP:
				cfg.Transport.EnableTCP = true
			case TransportWebSocket:
				cfg.Transport.EnableWebSocket = true
			case TransportWebRTC:
				cfg.Transport.EnableWebRTC = true
			case TransportCircuitRelay:
				cfg.Transport.EnableCircuitRelay = true
			}
		}
	}
	return nil
}

// 传输名称（WithTransports）
const (
	TransportQUIC         = "quic"
	TransportWebTransport = "webtransport"
	TransportTCP          = "tcp"
	TransportWebSocket    = "websocket"
	TransportWebRTC       = "webrtc"
	TransportCircuitRelay = "circuit-relay"
)

// WithConfig 使用完整配置（深拷贝）
//
// 其它覆盖型选项（监听地址、引导节点、传输集合）总是在其之上生效。
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("nil config")
		}
		o.config = cfg.Clone()
		return nil
	}
}

// WithIdentity 使用指定私钥，优先于配置中的密钥文件
func WithIdentity(priv crypto.PrivateKey) Option {
	return func(o *options) error {
		if priv == nil {
			return crypto.ErrNilPrivateKey
		}
		o.priv = priv
		return nil
	}
}

// WithLogger 使用外部 logger，忽略配置中的日志设置
func WithLogger(l *slog.Logger) Option {
	return func(o *options) error {
		o.logger = l
		return nil
	}
}

// WithBootstrapPeers 设置引导节点
//
// 显式传入空列表表示不连接任何引导节点。
func WithBootstrapPeers(addrs ...string) Option {
	return func(o *options) error {
		o.bootstrapPeers = append([]string{}, addrs...)
		o.bootstrapPeersSet = true
		return nil
	}
}

// WithListenAddrs 设置监听地址
func WithListenAddrs(addrs ...string) Option {
	return func(o *options) error {
		o.listenAddrs = append([]string{}, addrs...)
		o.listenAddrsSet = true
		return nil
	}
}

// WithTransports 只启用列出的传输
//
// 可用名称见 TransportQUIC 等常量，未知名称返回错误。
func WithTransports(names ...string) Option {
	return func(o *options) error {
		for _, n := range names {
			switch n {
			case TransportQUIC, TransportWebTransport, TransportTCP, TransportWebSocket, TransportWebRTC, TransportCircuitRelay:
			default:
				return fmt.Errorf("unknown transport %q", n)
			}
		}
		o.transports = append([]string{}, names...)
		return nil
	}
}

// WithMessageIDFn 替换 gossip 消息标识函数
func WithMessageIDFn(fn msgid.Func) Option {
	return func(o *options) error {
		if fn == nil {
			return errors.New("nil message id function")
		}
		o.idFn = fn
		return nil
	}
}

// WithMetricsRegistry 在指定 Registry 上注册节点指标
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(o *options) error {
		o.registry = reg
		return nil
	}
}

// WithFxOptions 追加自定义 fx 选项
//
// 可用于注入额外组件或通过 fx.Populate 取出内部服务。
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOpts = append(o.fxOpts, opts...)
		return nil
	}
}
