package bootstrap

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/dep2p/go-ucnode/config"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// connectTimeout 单次连接超时
const connectTimeout = 30 * time.Second

// ============================================================================
//                              Service 实现
// ============================================================================

// Service 引导节点连接维护
type Service struct {
	host       pkgif.Host
	peers      []Peer
	active     []Peer
	resolver   DNSAddrResolver
	dnsServer  string
	minBackoff time.Duration
	maxBackoff time.Duration
	clock      clock.Clock
	logger     *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	sub     pkgif.Subscription
	wg      sync.WaitGroup

	// watchers 等待对端断开的通道
	watchMu  sync.Mutex
	watchers map[types.PeerID][]chan struct{}
}

var _ pkgif.DiscoveryMechanism = (*Service)(nil)

// Option 服务选项
type Option func(*Service)

// WithClock 设置时钟（测试使用）
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithResolver 设置 dnsaddr 解析器
func WithResolver(r DNSAddrResolver) Option {
	return func(s *Service) { s.resolver = r }
}

// New 创建引导服务
func New(h pkgif.Host, peers []Peer, cfg config.DiscoveryConfig, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Service{
		host:       h,
		peers:      peers,
		dnsServer:  cfg.DNSServer,
		minBackoff: cfg.BootstrapMinBackoff.Duration(),
		maxBackoff: cfg.BootstrapMaxBackoff.Duration(),
		clock:      clock.New(),
		logger:     logger,
		watchers:   make(map[types.PeerID][]chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxBackoff < s.minBackoff {
		s.maxBackoff = s.minBackoff
	}
	return s
}

// Name 返回 "bootstrap"
func (s *Service) Name() string {
	return "bootstrap"
}

// Peers 返回引导目标
func (s *Service) Peers() []Peer {
	return append([]Peer(nil), s.peers...)
}

// Active 返回启动后实际维护的引导目标
func (s *Service) Active() []Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Peer(nil), s.active...)
}

// Start 为每个引导目标启动维护协程
//
// 没有引导节点时只记录日志。没有可拨号地址的静态目标在这里报告并跳过。
// dnsaddr 解析器在需要时按配置创建。
func (s *Service) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	if len(s.peers) == 0 {
		s.logger.Info("no bootstrap peers configured")
		s.started = true
		return nil
	}
	if s.resolver == nil && s.hasDNSAddr() {
		r, err := NewResolver(s.dnsServer)
		if err != nil {
			s.logger.Warn("dnsaddr resolver unavailable", "error", err)
		} else {
			s.resolver = r
		}
	}

	sub, err := s.host.EventBus().Subscribe(new(types.EvtPeerConnectedness))
	if err != nil {
		return err
	}
	s.active = s.dialable()
	ctx, cancel := context.WithCancel(context.Background())
	s.sub = sub
	s.cancel = cancel
	s.started = true

	s.wg.Add(1)
	go s.dispatch(sub)
	for _, p := range s.active {
		s.wg.Add(1)
		go s.maintain(ctx, p)
	}
	s.logger.Debug("bootstrap started", "peers", len(s.active), "skipped", len(s.peers)-len(s.active))
	return nil
}

// Stop 停止全部维护协程
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.started = false
	cancel, sub := s.cancel, s.sub
	s.cancel, s.sub = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if sub != nil {
		err = sub.Close()
	}
	s.wg.Wait()
	return err
}

// dialable 去掉本节点没有传输能拨号的静态地址
//
// dnsaddr 目标在解析后才知道地址，原样保留。
func (s *Service) dialable() []Peer {
	out := make([]Peer, 0, len(s.peers))
	for _, p := range s.peers {
		if p.DNSAddr != nil {
			out = append(out, p)
			continue
		}
		addrs := p.Info.Addrs[:0:0]
		for _, a := range p.Info.Addrs {
			if s.host.Network().TransportForDialing(a) == nil {
				s.logger.Warn("bootstrap address not dialable by any transport",
					"peer", log.TruncateID(p.Info.ID.String(), 12),
					"addr", a.String())
				continue
			}
			addrs = append(addrs, a)
		}
		if len(addrs) == 0 {
			s.logger.Warn("bootstrap peer skipped, no dialable address", "target", p.Name())
			continue
		}
		p.Info.Addrs = addrs
		out = append(out, p)
	}
	return out
}

func (s *Service) hasDNSAddr() bool {
	for _, p := range s.peers {
		if p.DNSAddr != nil {
			return true
		}
	}
	return false
}

// maintain 保持与一个引导目标的连接
func (s *Service) maintain(ctx context.Context, p Peer) {
	defer s.wg.Done()

	backoff := s.minBackoff
	for {
		id, err := s.connect(ctx, p)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			backoff = s.minBackoff
			s.logger.Info("connected to bootstrap peer", "peer", log.TruncateID(id.String(), 12))
			if !s.waitDisconnect(ctx, id) {
				return
			}
			s.logger.Debug("bootstrap peer disconnected", "peer", log.TruncateID(id.String(), 12))
			continue
		}

		s.logger.Debug("bootstrap connect failed",
			"target", p.Name(),
			"retry_in", backoff,
			"error", err)
		select {
		case <-s.clock.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > s.maxBackoff {
			backoff = s.maxBackoff
		}
	}
}

// connect 连接目标，返回已连接的节点 ID
func (s *Service) connect(ctx context.Context, p Peer) (types.PeerID, error) {
	infos := []types.AddrInfo{p.Info}
	if p.DNSAddr != nil {
		if s.resolver == nil {
			return "", ErrNoDNSServer
		}
		addrs, err := s.resolver.Resolve(ctx, p.DNSAddr)
		if err != nil {
			return "", err
		}
		infos, err = types.AddrInfosFromMultiaddrs(addrs)
		if err != nil {
			return "", err
		}
		if len(infos) == 0 {
			return "", ErrNoAddresses
		}
	}

	var errs error
	for _, info := range infos {
		if s.host.Network().Connected(info.ID) {
			return info.ID, nil
		}
		s.host.Peerstore().AddAddrs(info.ID, info.Addrs, pkgif.PermanentAddrTTL)
		cctx, cancel := context.WithTimeout(ctx, connectTimeout)
		err := s.host.Connect(cctx, info)
		cancel()
		if err == nil {
			return info.ID, nil
		}
		errs = multierr.Append(errs, err)
	}
	return "", errs
}

// ============================================================================
//                              断开通知
// ============================================================================

// waitDisconnect 等待对端断开；ctx 结束时返回 false
func (s *Service) waitDisconnect(ctx context.Context, id types.PeerID) bool {
	ch := make(chan struct{}, 1)
	s.watchMu.Lock()
	s.watchers[id] = append(s.watchers[id], ch)
	s.watchMu.Unlock()

	// 注册前可能已经断开
	if !s.host.Network().Connected(id) {
		s.unwatch(id, ch)
		return true
	}

	select {
	case <-ch:
		return true
	case <-ctx.Done():
		s.unwatch(id, ch)
		return false
	}
}

func (s *Service) unwatch(id types.PeerID, ch chan struct{}) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	list := s.watchers[id]
	for i, c := range list {
		if c == ch {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(s.watchers, id)
	} else {
		s.watchers[id] = list
	}
}

func (s *Service) dispatch(sub pkgif.Subscription) {
	defer s.wg.Done()
	for e := range sub.Out() {
		evt, ok := e.(types.EvtPeerConnectedness)
		if !ok || evt.Connected {
			continue
		}
		s.watchMu.Lock()
		list := s.watchers[evt.Peer]
		delete(s.watchers, evt.Peer)
		s.watchMu.Unlock()
		for _, ch := range list {
			ch <- struct{}{}
		}
	}
}
