package swarm

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dep2p/go-ucnode/internal/core/metrics"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"
)

// DefaultDialTimeout DialPeer 单个地址的默认超时
const DefaultDialTimeout = 15 * time.Second

// Swarm 连接群管理
type Swarm struct {
	local     types.PeerID
	peerstore pkgif.Peerstore
	metrics   *metrics.Metrics
	logger    *slog.Logger
	emitter   pkgif.Emitter
	gater     pkgif.ConnectionGater

	dialTimeout time.Duration
	dialGroup   singleflight.Group

	mu         sync.RWMutex
	transports []pkgif.Transport
	listeners  []pkgif.Listener
	conns      map[types.PeerID][]*Conn
	notifiees  map[pkgif.Notifiee]struct{}
	handler    func(pkgif.Stream)

	nextConn atomic.Uint64
	closed   atomic.Bool
	wg       sync.WaitGroup
}

var _ pkgif.Swarm = (*Swarm)(nil)

// Option Swarm 选项
type Option func(*Swarm)

// WithMetrics 设置指标集合
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Swarm) { s.metrics = m }
}

// WithLogger 设置日志
func WithLogger(l *slog.Logger) Option {
	return func(s *Swarm) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEventBus 连接状态变化时发射 EvtPeerConnectedness
func WithEventBus(bus pkgif.EventBus) Option {
	return func(s *Swarm) {
		if bus == nil {
			return
		}
		if em, err := bus.Emitter(new(types.EvtPeerConnectedness)); err == nil {
			s.emitter = em
		}
	}
}

// WithGater 设置连接门控，nil 表示不拦截
func WithGater(g pkgif.ConnectionGater) Option {
	return func(s *Swarm) { s.gater = g }
}

// WithDialTimeout 设置 DialPeer 单个地址的超时
func WithDialTimeout(d time.Duration) Option {
	return func(s *Swarm) {
		if d > 0 {
			s.dialTimeout = d
		}
	}
}

// New 创建 Swarm
func New(local types.PeerID, ps pkgif.Peerstore, opts ...Option) *Swarm {
	s := &Swarm{
		local:       local,
		peerstore:   ps,
		logger:      log.Discard(),
		dialTimeout: DefaultDialTimeout,
		conns:       make(map[types.PeerID][]*Conn),
		notifiees:   make(map[pkgif.Notifiee]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LocalPeer 返回本地节点 ID
func (s *Swarm) LocalPeer() types.PeerID { return s.local }

// Peerstore 返回对端存储
func (s *Swarm) Peerstore() pkgif.Peerstore { return s.peerstore }

// ============================================================================
//                              传输
// ============================================================================

// AddTransport 注册传输
func (s *Swarm) AddTransport(t pkgif.Transport) error {
	if s.closed.Load() {
		return ErrSwarmClosed
	}
	s.mu.Lock()
	s.transports = append(s.transports, t)
	s.mu.Unlock()
	return nil
}

// Transports 返回已注册传输
func (s *Swarm) Transports() []pkgif.Transport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]pkgif.Transport(nil), s.transports...)
}

// TransportForDialing 返回第一个能拨号该地址的传输
func (s *Swarm) TransportForDialing(addr multiaddr.Multiaddr) pkgif.Transport {
	for _, t := range s.Transports() {
		if t.CanDial(addr) {
			return t
		}
	}
	return nil
}

// transportForListening 选择监听传输
//
// 直连地址与拨号规则一致；代理传输按地址的最后一个协议匹配（如 /p2p-circuit、/webrtc）。
func (s *Swarm) transportForListening(addr multiaddr.Multiaddr) pkgif.Transport {
	if t := s.TransportForDialing(addr); t != nil {
		return t
	}
	codes := addr.ProtoCodes()
	if len(codes) == 0 {
		return nil
	}
	last := codes[len(codes)-1]
	for _, t := range s.Transports() {
		if !t.Proxy() {
			continue
		}
		for _, c := range t.Protocols() {
			if c == last {
				return t
			}
		}
	}
	return nil
}

// transportName 返回传输的指标标签
func transportName(t pkgif.Transport) string {
	if t == nil {
		return "none"
	}
	ps := t.Protocols()
	if len(ps) == 0 {
		return "unknown"
	}
	return multiaddr.ProtocolWithCode(ps[0]).Name
}

// ============================================================================
//                              连接
// ============================================================================

// addConn 登记已升级的连接
func (s *Swarm) addConn(cc pkgif.CapableConn, dir types.Direction) (*Conn, error) {
	if s.closed.Load() {
		cc.Close()
		return nil, ErrSwarmClosed
	}
	c := newConn(s, cc, s.nextConn.Add(1), dir)
	p := cc.RemotePeer()

	if s.peerstore != nil {
		if pub := cc.RemotePublicKey(); pub != nil {
			if err := s.peerstore.AddPubKey(p, pub); err != nil {
				s.logger.Debug("record peer key failed", "peer", log.TruncateID(p.String(), 12), "error", err)
			}
		}
		if ra := cc.RemoteMultiaddr(); ra != nil && dir == types.DirOutbound {
			s.peerstore.AddAddrs(p, []multiaddr.Multiaddr{ra}, pkgif.ConnectedAddrTTL)
		}
	}

	s.mu.Lock()
	first := len(s.conns[p]) == 0
	s.conns[p] = append(s.conns[p], c)
	s.wg.Add(1)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Connections.WithLabelValues(dir.String()).Inc()
	}
	s.logger.Debug("connection opened",
		"peer", log.TruncateID(p.String(), 12),
		"direction", dir.String(),
		"raddr", cc.RemoteMultiaddr())

	go c.acceptStreams()

	s.notifyAll(func(n pkgif.Notifiee) { n.Connected(s, c) })
	if first {
		s.emitConnectedness(p, true)
	}
	return c, nil
}

func (s *Swarm) removeConn(c *Conn) {
	p := c.RemotePeer()
	s.mu.Lock()
	cs := s.conns[p]
	found := false
	for i, x := range cs {
		if x == c {
			cs = append(cs[:i], cs[i+1:]...)
			found = true
			break
		}
	}
	if len(cs) == 0 {
		delete(s.conns, p)
	} else {
		s.conns[p] = cs
	}
	s.mu.Unlock()
	if !found {
		return
	}

	if s.metrics != nil {
		s.metrics.Connections.WithLabelValues(c.stat.Direction.String()).Dec()
	}
	if s.peerstore != nil && len(cs) == 0 {
		if addrs := s.peerstore.Addrs(p); len(addrs) > 0 {
			s.peerstore.AddAddrs(p, addrs, pkgif.RecentlyConnectedAddrTTL)
		}
	}
	s.logger.Debug("connection closed", "peer", log.TruncateID(p.String(), 12))

	s.notifyAll(func(n pkgif.Notifiee) { n.Disconnected(s, c) })
	if len(cs) == 0 {
		s.emitConnectedness(p, false)
	}
}

func (s *Swarm) emitConnectedness(p types.PeerID, connected bool) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.Emit(types.EvtPeerConnectedness{Peer: p, Connected: connected}); err != nil {
		s.logger.Debug("emit connectedness failed", "error", err)
	}
}

// Conns 返回所有连接
func (s *Swarm) Conns() []pkgif.Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pkgif.Conn
	for _, cs := range s.conns {
		for _, c := range cs {
			out = append(out, c)
		}
	}
	return out
}

// ConnsToPeer 返回到指定对端的连接
func (s *Swarm) ConnsToPeer(p types.PeerID) []pkgif.Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs := s.conns[p]
	out := make([]pkgif.Conn, 0, len(cs))
	for _, c := range cs {
		out = append(out, c)
	}
	return out
}

// bestConn 优先返回非中继连接
func (s *Swarm) bestConn(p types.PeerID) *Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *Conn
	for _, c := range s.conns[p] {
		if c.IsClosed() {
			continue
		}
		if best == nil || best.stat.Transient && !c.stat.Transient {
			best = c
		}
	}
	return best
}

// Peers 返回已连接的对端
func (s *Swarm) Peers() []types.PeerID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.PeerID, 0, len(s.conns))
	for p := range s.conns {
		out = append(out, p)
	}
	return out
}

// Connected 是否存在到对端的连接
func (s *Swarm) Connected(p types.PeerID) bool {
	return s.bestConn(p) != nil
}

// ClosePeer 关闭到对端的所有连接
func (s *Swarm) ClosePeer(p types.PeerID) error {
	var err error
	for _, c := range s.ConnsToPeer(p) {
		err = multierr.Append(err, c.Close())
	}
	return err
}

// ============================================================================
//                              流与通知
// ============================================================================

// SetStreamHandler 设置入站流处理器
func (s *Swarm) SetStreamHandler(h func(pkgif.Stream)) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

func (s *Swarm) streamHandler() func(pkgif.Stream) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handler
}

// Notify 注册连接事件通知
func (s *Swarm) Notify(n pkgif.Notifiee) {
	s.mu.Lock()
	s.notifiees[n] = struct{}{}
	s.mu.Unlock()
}

// StopNotify 取消连接事件通知
func (s *Swarm) StopNotify(n pkgif.Notifiee) {
	s.mu.Lock()
	delete(s.notifiees, n)
	s.mu.Unlock()
}

func (s *Swarm) notifyAll(fn func(pkgif.Notifiee)) {
	s.mu.RLock()
	ns := make([]pkgif.Notifiee, 0, len(s.notifiees))
	for n := range s.notifiees {
		ns = append(ns, n)
	}
	s.mu.RUnlock()
	for _, n := range ns {
		fn(n)
	}
}

// ============================================================================
//                              关闭
// ============================================================================

// Close 关闭所有监听器与连接
//
// 传输由提供它们的模块关闭。
func (s *Swarm) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.Lock()
	listeners := s.listeners
	s.listeners = nil
	s.mu.Unlock()

	var err error
	for _, l := range listeners {
		err = multierr.Append(err, l.Close())
	}
	for _, c := range s.Conns() {
		_ = c.Close()
	}
	s.wg.Wait()
	if s.emitter != nil {
		_ = s.emitter.Close()
	}
	return err
}
