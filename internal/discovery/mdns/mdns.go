package mdns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/mdns"

	"github.com/dep2p/go-ucnode/config"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// domain mDNS 域
const domain = "local."

// connectTimeout 连接新发现对端的超时
const connectTimeout = 15 * time.Second

var (
	// ErrAlreadyStarted 服务已启动
	ErrAlreadyStarted = errors.New("mdns already started")

	// ErrNotStarted 服务未启动
	ErrNotStarted = errors.New("mdns not started")

	// errNoLANAddrs 没有可广播的局域网地址
	errNoLANAddrs = errors.New("no LAN addresses to advertise")
)

// ============================================================================
//                              Service 实现
// ============================================================================

// Service mDNS 发现服务
type Service struct {
	host    pkgif.Host
	book    pkgif.AddressBook
	enabled bool
	tag     string
	every   time.Duration
	timeout time.Duration
	clock   clock.Clock
	logger  *slog.Logger

	// query 执行一次多播查询，测试时替换
	query func(*mdns.QueryParam) error

	mu       sync.Mutex
	started  bool
	server   *mdns.Server
	cancel   context.CancelFunc
	unwatch  func()
	wg       sync.WaitGroup
	found    map[types.PeerID]struct{}
	foundMu  sync.Mutex
}

var _ pkgif.DiscoveryMechanism = (*Service)(nil)

// Option 服务选项
type Option func(*Service)

// WithClock 设置时钟（测试使用）
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// New 创建 mDNS 服务
func New(h pkgif.Host, book pkgif.AddressBook, cfg config.MDNSConfig, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Service{
		host:    h,
		book:    book,
		enabled: cfg.Enable,
		tag:     cfg.ServiceTag,
		every:   cfg.QueryInterval.Duration(),
		timeout: cfg.QueryTimeout.Duration(),
		clock:   clock.New(),
		logger:  logger,
		query:   mdns.Query,
		found:   make(map[types.PeerID]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name 返回 "mdns"
func (s *Service) Name() string {
	return "mdns"
}

// Start 启动广播与查询循环
//
// 未启用时直接返回。服务器创建失败只记录日志，节点仍以纯查询方式工作。
func (s *Service) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true
	if !s.enabled {
		s.logger.Debug("mdns disabled")
		return nil
	}

	s.restartServerLocked(s.host.Addrs())
	if s.book != nil {
		s.unwatch = s.book.OnLocalAddressesChanged(func(evt types.EvtLocalAddressesChanged) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.started {
				s.restartServerLocked(evt.Addrs)
			}
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.queryLoop(ctx)

	s.logger.Debug("mdns started", "service", s.tag)
	return nil
}

// Stop 停止服务
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.started = false
	cancel, unwatch := s.cancel, s.unwatch
	s.cancel, s.unwatch = nil, nil
	var err error
	if s.server != nil {
		err = s.server.Shutdown()
		s.server = nil
	}
	s.mu.Unlock()

	if unwatch != nil {
		unwatch()
	}
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	return err
}

// ============================================================================
//                              广播
// ============================================================================

// restartServerLocked 按给定地址重建服务器，调用方持有 mu
func (s *Service) restartServerLocked(addrs []multiaddr.Multiaddr) {
	if s.server != nil {
		if err := s.server.Shutdown(); err != nil {
			s.logger.Debug("mdns server shutdown failed", "error", err)
		}
		s.server = nil
	}

	server, err := s.newServer(addrs)
	if err != nil {
		s.logger.Info("mdns advertising unavailable", "error", err)
		return
	}
	s.server = server
}

func (s *Service) newServer(addrs []multiaddr.Multiaddr) (*mdns.Server, error) {
	lan := lanAddrs(addrs)
	if len(lan) == 0 {
		return nil, errNoLANAddrs
	}
	ips, port := ipsAndPort(lan)
	if len(ips) == 0 || port == 0 {
		return nil, errNoLANAddrs
	}

	self := s.host.ID()
	zone, err := mdns.NewMDNSService(
		self.String(),
		s.tag,
		domain,
		self.String()+"."+domain,
		port,
		ips,
		buildTXTRecords(self, lan),
	)
	if err != nil {
		return nil, fmt.Errorf("mdns service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: zone})
	if err != nil {
		return nil, fmt.Errorf("mdns server: %w", err)
	}
	s.logger.Debug("mdns advertising", "addrs", len(lan), "port", port)
	return server, nil
}

// lanAddrs 筛选可在局域网内直连的地址
func lanAddrs(addrs []multiaddr.Multiaddr) []multiaddr.Multiaddr {
	var out []multiaddr.Multiaddr
	for _, a := range addrs {
		if a == nil || a.HasProtocol(multiaddr.P_CIRCUIT) {
			continue
		}
		if multiaddr.IsLoopback(a) || multiaddr.IsPublic(a) {
			continue
		}
		if _, err := a.ValueForProtocol(multiaddr.P_IP4); err != nil {
			if _, err := a.ValueForProtocol(multiaddr.P_IP6); err != nil {
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

// ipsAndPort 收集 A/AAAA 记录使用的 IP 与 SRV 端口（取第一个地址的端口）
func ipsAndPort(addrs []multiaddr.Multiaddr) ([]net.IP, int) {
	var (
		ips  []net.IP
		seen = make(map[string]struct{})
		port int
	)
	for _, a := range addrs {
		for _, code := range []int{multiaddr.P_IP4, multiaddr.P_IP6} {
			v, err := a.ValueForProtocol(code)
			if err != nil {
				continue
			}
			if _, dup := seen[v]; !dup {
				if ip := net.ParseIP(v); ip != nil {
					seen[v] = struct{}{}
					ips = append(ips, ip)
				}
			}
		}
		if port != 0 {
			continue
		}
		for _, code := range []int{multiaddr.P_TCP, multiaddr.P_UDP} {
			if v, err := a.ValueForProtocol(code); err == nil {
				if n, err := strconv.Atoi(v); err == nil && n > 0 {
					port = n
					break
				}
			}
		}
	}
	return ips, port
}

// ============================================================================
//                              查询
// ============================================================================

func (s *Service) queryLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := s.clock.Ticker(s.every)
	defer ticker.Stop()

	s.runQuery(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runQuery(ctx)
		}
	}
}

// runQuery 执行一次多播查询并处理全部响应
func (s *Service) runQuery(ctx context.Context) {
	entries := make(chan *mdns.ServiceEntry, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			s.handleEntry(ctx, e)
		}
	}()

	err := s.query(&mdns.QueryParam{
		Service:     s.tag,
		Domain:      domain,
		Timeout:     s.timeout,
		Entries:     entries,
		DisableIPv6: true,
	})
	close(entries)
	<-done
	if err != nil && ctx.Err() == nil {
		s.logger.Debug("mdns query failed", "error", err)
	}
}

// handleEntry 记录并连接一个响应中的对端
func (s *Service) handleEntry(ctx context.Context, e *mdns.ServiceEntry) {
	if e == nil {
		return
	}
	info, ok := parseTXTRecords(e.InfoFields)
	if !ok || info.ID == s.host.ID() {
		return
	}

	s.foundMu.Lock()
	_, known := s.found[info.ID]
	s.found[info.ID] = struct{}{}
	s.foundMu.Unlock()
	if !known {
		s.logger.Info("discovered peer on LAN", "peer", log.TruncateID(info.ID.String(), 12), "addrs", len(info.Addrs))
	}

	if s.host.Network().Connected(info.ID) {
		return
	}
	s.host.Peerstore().AddAddrs(info.ID, info.Addrs, pkgif.TempAddrTTL)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		cctx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		if err := s.host.Connect(cctx, info); err != nil {
			s.logger.Debug("connect to LAN peer failed", "peer", log.TruncateID(info.ID.String(), 12), "error", err)
		}
	}()
}

// Found 返回发现过的对端
func (s *Service) Found() []types.PeerID {
	s.foundMu.Lock()
	defer s.foundMu.Unlock()
	out := make([]types.PeerID, 0, len(s.found))
	for p := range s.found {
		out = append(out, p)
	}
	return out
}
