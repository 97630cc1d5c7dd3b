package transport

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/core/transport/quic"
	"github.com/dep2p/go-ucnode/internal/core/transport/tcp"
	"github.com/dep2p/go-ucnode/internal/core/transport/websocket"
	"github.com/dep2p/go-ucnode/internal/core/transport/webtransport"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
)

// Manager 持有按配置创建的直连传输
type Manager struct {
	transports []pkgif.Transport
	logger     *slog.Logger
}

// NewManager 按配置创建传输
func NewManager(cfg config.TransportConfig, identity pkgif.Identity, upgrader pkgif.Upgrader, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.Discard()
	}
	m := &Manager{logger: logger}
	dialTimeout := cfg.DialTimeout.Duration()

	if cfg.EnableQUIC {
		qt, err := quic.New(identity.PrivateKey(), dialTimeout, log.Component(logger, "transport/quic"))
		if err != nil {
			return nil, err
		}
		m.transports = append(m.transports, qt)
	}
	if cfg.EnableWebTransport {
		wt, err := webtransport.New(identity.PrivateKey(), dialTimeout, log.Component(logger, "transport/webtransport"))
		if err != nil {
			return nil, err
		}
		m.transports = append(m.transports, wt)
	}
	if cfg.EnableTCP {
		m.transports = append(m.transports, tcp.New(upgrader, dialTimeout, log.Component(logger, "transport/tcp")))
	}
	if cfg.EnableWebSocket {
		m.transports = append(m.transports, websocket.New(upgrader, dialTimeout, log.Component(logger, "transport/websocket")))
	}

	logger.Debug("transports created",
		"quic", cfg.EnableQUIC,
		"webtransport", cfg.EnableWebTransport,
		"tcp", cfg.EnableTCP,
		"websocket", cfg.EnableWebSocket)
	return m, nil
}

// Transports 返回已创建的传输
func (m *Manager) Transports() []pkgif.Transport {
	return m.transports
}

// Close 关闭全部传输
func (m *Manager) Close() error {
	var err error
	for _, t := range m.transports {
		err = multierr.Append(err, t.Close())
	}
	return err
}

// Params 传输模块依赖
type Params struct {
	fx.In

	Config   *config.Config
	Identity pkgif.Identity
	Upgrader pkgif.Upgrader
	Logger   *slog.Logger
}

// Output 传输模块输出
type Output struct {
	fx.Out

	Manager    *Manager
	Transports []pkgif.Transport `group:"transports,flatten"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(ProvideTransports),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideTransports 提供 Manager 与传输值组
func ProvideTransports(p Params) (Output, error) {
	m, err := NewManager(p.Config.Transport, p.Identity, p.Upgrader, log.Component(p.Logger, "core/transport"))
	if err != nil {
		return Output{}, err
	}
	return Output{Manager: m, Transports: m.Transports()}, nil
}

func registerLifecycle(lc fx.Lifecycle, m *Manager) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return m.Close()
		},
	})
}
