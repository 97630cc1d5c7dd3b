package ucnode

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/core/host"
	"github.com/dep2p/go-ucnode/internal/core/metrics"
	"github.com/dep2p/go-ucnode/internal/core/relayaddr"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// stopTimeout Close 停止 fx 应用的超时
const stopTimeout = 15 * time.Second

// ════════════════════════════════════════════════════════════════════════════
//                              Node
// ════════════════════════════════════════════════════════════════════════════

// Node 运行中的节点
//
// 由 New 创建，创建成功即已启动、已订阅主题。所有方法可并发调用。
type Node struct {
	app      *fx.App
	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error

	// fx 注入
	host      *host.Host
	identity  pkgif.Identity
	book      pkgif.AddressBook
	gossip    pkgif.GossipChannel
	routing   pkgif.Routing
	metrics   *metrics.Metrics
	discovery []pkgif.DiscoveryMechanism

	deriver        *relayaddr.Deriver
	sub            pkgif.TopicSubscription
	cancelObserver func()
	peerAddrs      pkgif.Subscription
	wg             sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New 组装并启动节点
//
// 成功时节点已在配置的地址上监听，订阅了 Config.Topic，
// 并注册了地址变化观察者。任何组装失败返回 *AssemblyError。
func New(ctx context.Context, opts ...Option) (*Node, error) {
	o := newOptions()
	if err := o.apply(opts...); err != nil {
		return nil, assemblyError("options", err)
	}
	cfg := o.config
	if err := cfg.Validate(); err != nil {
		return nil, assemblyError("config", err)
	}

	logger, closeLog := o.logger, func() error { return nil }
	if logger == nil {
		l, closer, err := log.Build(log.Options{
			Level:  cfg.Log.Level,
			Format: log.Format(cfg.Log.Format),
			File:   cfg.Log.File,
		})
		if err != nil {
			return nil, assemblyError("logger", err)
		}
		logger, closeLog = l, closer
	}

	n := &Node{cfg: cfg, logger: logger, closeLog: closeLog}
	n.app = buildFxApp(o, logger, n)
	if err := n.app.Err(); err != nil {
		_ = closeLog()
		return nil, assemblyError("build", err)
	}
	if err := n.app.Start(ctx); err != nil {
		_ = closeLog()
		return nil, assemblyError("start", err)
	}

	if err := n.compose(); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = n.app.Stop(stopCtx)
		_ = closeLog()
		return nil, assemblyError("subscribe", err)
	}

	logger.Info("node started",
		"peer", n.ID().String(),
		"topic", cfg.Topic,
		"addrs", multiaddr.Strings(n.host.Addrs()),
		"discovery", n.Discovery())
	return n, nil
}

// bind 接收 fx 注入的组件
func (n *Node) bind(p nodeParams) {
	n.host = p.Host
	n.identity = p.Identity
	n.book = p.Book
	n.gossip = p.Gossip
	n.routing = p.Routing
	n.metrics = p.Metrics
	n.discovery = p.Discovery
}

// compose 订阅主题并注册地址观察者
func (n *Node) compose() error {
	sub, err := n.gossip.Subscribe(n.cfg.Topic)
	if err != nil {
		return fmt.Errorf("subscribe %q: %w", n.cfg.Topic, err)
	}
	n.sub = sub

	peerAddrs, err := n.host.EventBus().Subscribe(new(types.EvtPeerAddrsChanged))
	if err != nil {
		sub.Cancel()
		return err
	}
	n.peerAddrs = peerAddrs
	n.wg.Add(1)
	go n.logPeerAddrs(peerAddrs)

	n.deriver = relayaddr.NewDeriver(n.ID(), log.Component(n.logger, "relayaddr"))
	// 地址事件是有状态的，订阅时会先收到当前地址集合
	n.cancelObserver = n.book.OnLocalAddressesChanged(n.onLocalAddressesChanged)
	return nil
}

// onLocalAddressesChanged 地址变化观察者
//
// 派生失败只记录日志，保留上一次的 WebRTC 地址。
func (n *Node) onLocalAddressesChanged(evt types.EvtLocalAddressesChanged) {
	n.logger.Debug("local addresses changed",
		"addrs", multiaddr.Strings(evt.Addrs),
		"added", len(evt.Added),
		"removed", len(evt.Removed))
	_, _ = n.deriver.OnAddressesChanged(evt.Addrs)
}

// logPeerAddrs 记录对端地址变化
func (n *Node) logPeerAddrs(sub pkgif.Subscription) {
	defer n.wg.Done()
	for e := range sub.Out() {
		evt, ok := e.(types.EvtPeerAddrsChanged)
		if !ok {
			continue
		}
		n.logger.Debug(fmt.Sprintf("changed multiaddrs: peer %s multiaddrs: %v",
			evt.Peer, multiaddr.Strings(evt.Addrs)))
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              访问器
// ════════════════════════════════════════════════════════════════════════════

// ID 返回节点 ID
func (n *Node) ID() types.PeerID {
	return n.identity.PeerID()
}

// Host 返回底层 Host
func (n *Node) Host() pkgif.Host {
	return n.host
}

// Addrs 返回本节点当前地址集合
func (n *Node) Addrs() []multiaddr.Multiaddr {
	return n.book.Snapshot()
}

// WebRTCAddrs 返回当前公告的经中继 WebRTC 地址
func (n *Node) WebRTCAddrs() []multiaddr.Multiaddr {
	return n.deriver.Addresses()
}

// Topic 返回订阅的主题
func (n *Node) Topic() string {
	return n.cfg.Topic
}

// Subscription 返回主题订阅
func (n *Node) Subscription() pkgif.TopicSubscription {
	return n.sub
}

// PubSub 返回 gossip 通道
func (n *Node) PubSub() pkgif.GossipChannel {
	return n.gossip
}

// Routing 返回 DHT 路由
func (n *Node) Routing() pkgif.Routing {
	return n.routing
}

// Discovery 返回已装配的发现机制名称
func (n *Node) Discovery() []string {
	names := make([]string, 0, len(n.discovery))
	for _, d := range n.discovery {
		names = append(names, d.Name())
	}
	return names
}

// Metrics 返回节点指标
func (n *Node) Metrics() *metrics.Metrics {
	return n.metrics
}

// Logger 返回节点 logger
func (n *Node) Logger() *slog.Logger {
	return n.logger
}

// Peers 返回已连接的对端
func (n *Node) Peers() []types.PeerID {
	return n.host.Network().Peers()
}

// Publish 向订阅的主题发布消息
func (n *Node) Publish(ctx context.Context, data []byte) error {
	if n.isClosed() {
		return ErrNodeClosed
	}
	return n.gossip.Publish(ctx, n.cfg.Topic, data)
}

// ════════════════════════════════════════════════════════════════════════════
//                              关闭
// ════════════════════════════════════════════════════════════════════════════

func (n *Node) isClosed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

// Close 取消订阅并停止全部子系统
//
// 可重复调用。
func (n *Node) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	n.logger.Info("node stopping", "peer", n.ID().String())

	n.cancelObserver()
	n.sub.Cancel()
	err := n.peerAddrs.Close()

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	err = multierr.Append(err, n.app.Stop(ctx))
	n.wg.Wait()
	return multierr.Append(err, n.closeLog())
}
