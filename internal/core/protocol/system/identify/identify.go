package identify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/core/host"
	"github.com/dep2p/go-ucnode/internal/util/framing"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/protocolids"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// ProtocolVersion 对外报告的协议版本
const ProtocolVersion = "ipfs/0.1.0"

// maxMessageSize 单条 Identify 消息上限
const maxMessageSize = 64 << 10

var (
	// ErrPeerIDMismatch 消息中的公钥与节点 ID 不符
	ErrPeerIDMismatch = errors.New("identify: public key does not match peer id")

	// ErrNotStarted 服务未启动
	ErrNotStarted = errors.New("identify: service not started")
)

// Host identify 需要的主机能力
//
// 除基础 Host 外还需要写入观测地址来源。
type Host interface {
	pkgif.Host
	SetAddrSource(source string, addrs []multiaddr.Multiaddr)
}

// Option 服务选项
type Option func(*Service)

// WithActivationThreshold 设置观测地址生效所需的观测者数量
func WithActivationThreshold(n int) Option {
	return func(s *Service) {
		s.observed = newObservedAddrs(n)
	}
}

// Service Identify 服务
type Service struct {
	host   Host
	pub    crypto.PublicKey
	book   pkgif.AddressBook
	cfg    config.IdentifyConfig
	logger *slog.Logger

	emitter  pkgif.Emitter
	observed *observedAddrs
	outSem   *semaphore.Weighted
	pushSem  *semaphore.Weighted

	mu       sync.Mutex
	inflight map[types.PeerID]*call
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	sub        pkgif.Subscription
	cancelBook func()
}

// call 进行中的一次 identify
type call struct {
	done chan struct{}
	err  error
}

// NewService 创建 Identify 服务
//
// pub 为本节点公钥；book 可为 nil，此时不做地址变化推送。
func NewService(h Host, pub crypto.PublicKey, book pkgif.AddressBook, cfg config.IdentifyConfig, logger *slog.Logger, opts ...Option) (*Service, error) {
	if logger == nil {
		logger = log.Discard()
	}
	em, err := h.EventBus().Emitter(new(types.EvtPeerIdentified))
	if err != nil {
		return nil, fmt.Errorf("identify emitter: %w", err)
	}
	s := &Service{
		host:     h,
		pub:      pub,
		book:     book,
		cfg:      cfg,
		logger:   logger,
		emitter:  em,
		observed: newObservedAddrs(DefaultActivationThreshold),
		outSem:   semaphore.NewWeighted(int64(cfg.MaxOutboundStreams)),
		pushSem:  semaphore.NewWeighted(int64(cfg.MaxPushOutgoingStreams)),
		inflight: make(map[types.PeerID]*call),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 注册协议处理器并开始识别新连接的节点
func (s *Service) Start(_ context.Context) error {
	s.mu.Lock()
	if s.ctx != nil {
		s.mu.Unlock()
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	s.host.SetStreamHandler(protocolids.Identify,
		host.LimitHandler(s.cfg.MaxInboundStreams, s.handleIdentify))
	s.host.SetStreamHandler(protocolids.IdentifyPush,
		host.LimitHandler(s.cfg.MaxPushIncomingStreams, s.handlePush))

	sub, err := s.host.EventBus().Subscribe(new(types.EvtPeerConnectedness))
	if err != nil {
		return fmt.Errorf("identify subscribe: %w", err)
	}
	s.sub = sub
	s.wg.Add(1)
	go s.watchConnections(sub)

	if s.book != nil {
		s.cancelBook = s.book.OnLocalAddressesChanged(func(types.EvtLocalAddressesChanged) {
			s.pushAll()
		})
	}

	// 启动前已建立的连接
	for _, p := range s.host.Network().Peers() {
		s.identifyAsync(p)
	}
	s.logger.Debug("identify service started")
	return nil
}

// Stop 停止服务
func (s *Service) Stop() error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	s.mu.Unlock()

	s.host.RemoveStreamHandler(protocolids.Identify)
	s.host.RemoveStreamHandler(protocolids.IdentifyPush)
	if s.cancelBook != nil {
		s.cancelBook()
	}
	if s.sub != nil {
		_ = s.sub.Close()
	}
	s.wg.Wait()
	return s.emitter.Close()
}

func (s *Service) watchConnections(sub pkgif.Subscription) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case evt, ok := <-sub.Out():
			if !ok {
				return
			}
			e := evt.(types.EvtPeerConnectedness)
			if e.Connected {
				s.identifyAsync(e.Peer)
			}
		}
	}
}

func (s *Service) identifyAsync(p types.PeerID) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.Timeout.Duration())
		defer cancel()
		if err := s.IdentifyWait(ctx, p); err != nil && s.ctx.Err() == nil {
			s.logger.Debug("identify failed", "peer", log.TruncateID(p.String(), 12), "error", err)
		}
	}()
}

// ============================================================================
//                              请求方
// ============================================================================

// IdentifyWait 向对端发起 identify 并等待完成
//
// 同一对端的并发调用共享一次交换。
func (s *Service) IdentifyWait(ctx context.Context, p types.PeerID) error {
	s.mu.Lock()
	if s.ctx == nil {
		s.mu.Unlock()
		return ErrNotStarted
	}
	c, ok := s.inflight[p]
	if !ok {
		c = &call{done: make(chan struct{})}
		s.inflight[p] = c
		go func() {
			c.err = s.identify(ctx, p)
			s.mu.Lock()
			delete(s.inflight, p)
			s.mu.Unlock()
			close(c.done)
		}()
	}
	s.mu.Unlock()

	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) identify(ctx context.Context, p types.PeerID) error {
	if err := s.outSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.outSem.Release(1)

	st, err := s.host.NewStream(ctx, p, protocolids.Identify)
	if err != nil {
		return err
	}
	defer st.Close()

	_ = st.SetDeadline(time.Now().Add(s.cfg.Timeout.Duration()))
	b, err := framing.ReadMsg(st, maxMessageSize)
	if err != nil {
		_ = st.Reset()
		return fmt.Errorf("read identify: %w", err)
	}
	var msg Message
	if err := msg.Unmarshal(b); err != nil {
		_ = st.Reset()
		return err
	}
	return s.consume(st.Conn(), &msg, true)
}

// ============================================================================
//                              响应方
// ============================================================================

// handleIdentify 写出本节点信息后关闭流
func (s *Service) handleIdentify(st pkgif.Stream) {
	defer st.Close()
	_ = st.SetWriteDeadline(time.Now().Add(s.cfg.Timeout.Duration()))
	msg := s.localMessage(st.Conn().RemoteMultiaddr())
	if err := framing.WriteMsg(st, msg.Marshal()); err != nil {
		s.logger.Debug("write identify failed", "error", err)
		_ = st.Reset()
	}
}

// handlePush 接收对端推送的新信息
func (s *Service) handlePush(st pkgif.Stream) {
	defer st.Close()
	_ = st.SetReadDeadline(time.Now().Add(s.cfg.Timeout.Duration()))
	b, err := framing.ReadMsg(st, maxMessageSize)
	if err != nil {
		_ = st.Reset()
		return
	}
	var msg Message
	if err := msg.Unmarshal(b); err != nil {
		_ = st.Reset()
		return
	}
	if err := s.consume(st.Conn(), &msg, false); err != nil {
		s.logger.Debug("identify push rejected", "error", err)
	}
}

// ============================================================================
//                              推送
// ============================================================================

// pushAll 向所有支持 push 的已连接节点推送本节点信息
func (s *Service) pushAll() {
	ps := s.host.Peerstore()
	for _, p := range s.host.Network().Peers() {
		if len(ps.SupportsProtocols(p, protocolids.IdentifyPush)) == 0 {
			continue
		}
		s.wg.Add(1)
		go func(p types.PeerID) {
			defer s.wg.Done()
			if err := s.push(p); err != nil && s.ctx.Err() == nil {
				s.logger.Debug("identify push failed", "peer", log.TruncateID(p.String(), 12), "error", err)
			}
		}(p)
	}
}

func (s *Service) push(p types.PeerID) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.Timeout.Duration())
	defer cancel()
	if err := s.pushSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.pushSem.Release(1)

	st, err := s.host.NewStream(ctx, p, protocolids.IdentifyPush)
	if err != nil {
		return err
	}
	defer st.Close()
	_ = st.SetWriteDeadline(time.Now().Add(s.cfg.Timeout.Duration()))
	msg := s.localMessage(st.Conn().RemoteMultiaddr())
	if err := framing.WriteMsg(st, msg.Marshal()); err != nil {
		_ = st.Reset()
		return err
	}
	return nil
}

// ============================================================================
//                              消息处理
// ============================================================================

func (s *Service) localMessage(observed multiaddr.Multiaddr) *Message {
	msg := &Message{
		ListenAddrs:     s.host.Addrs(),
		Protocols:       s.host.Protocols(),
		ObservedAddr:    observed,
		ProtocolVersion: ProtocolVersion,
		AgentVersion:    s.cfg.AgentVersion,
	}
	if s.pub != nil {
		if b, err := crypto.MarshalPublicKey(s.pub); err == nil {
			msg.PublicKey = b
		}
	}
	return msg
}

// consume 把对端信息写入 Peerstore 并发出 EvtPeerIdentified
func (s *Service) consume(conn pkgif.Conn, msg *Message, withObserved bool) error {
	p := conn.RemotePeer()
	ps := s.host.Peerstore()

	if len(msg.PublicKey) > 0 {
		pub, err := verifyKey(p, msg.PublicKey)
		if err != nil {
			return err
		}
		if err := ps.AddPubKey(p, pub); err != nil {
			return err
		}
	}

	ttl := pkgif.RecentlyConnectedAddrTTL
	if s.host.Network().Connected(p) {
		ttl = pkgif.ConnectedAddrTTL
	}
	addrs := make([]multiaddr.Multiaddr, 0, len(msg.ListenAddrs))
	for _, a := range msg.ListenAddrs {
		// 去掉指向对端自身的 /p2p 后缀
		if tpt, id := multiaddr.SplitP2P(a); id == p.String() {
			a = tpt
		}
		if a != nil {
			addrs = append(addrs, a)
		}
	}
	ps.SetAddrs(p, addrs, ttl)
	ps.SetProtocols(p, msg.Protocols...)

	if withObserved && s.observed.record(msg.ObservedAddr, conn.RemoteMultiaddr(), s.host.Network().ListenAddresses()) {
		active := s.observed.active()
		s.logger.Info("observed addresses changed", "addrs", multiaddr.Strings(active))
		s.host.SetAddrSource(host.SourceObserved, active)
	}

	s.logger.Debug("peer identified",
		"peer", log.TruncateID(p.String(), 12),
		"agent", msg.AgentVersion,
		"addrs", len(addrs),
		"protocols", len(msg.Protocols))

	return s.emitter.Emit(types.EvtPeerIdentified{
		Peer:         p,
		ListenAddrs:  addrs,
		Protocols:    msg.Protocols,
		ObservedAddr: msg.ObservedAddr,
	})
}

// verifyKey 解析公钥并确认与节点 ID 一致
func verifyKey(p types.PeerID, raw []byte) (crypto.PublicKey, error) {
	pub, err := crypto.UnmarshalPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("identify: %w", err)
	}
	if !crypto.PeerIDMatchesPublicKey(p, pub) {
		return nil, ErrPeerIDMismatch
	}
	return pub, nil
}

// ObservedAddrs 返回当前生效的观测地址
func (s *Service) ObservedAddrs() []multiaddr.Multiaddr {
	return s.observed.active()
}
