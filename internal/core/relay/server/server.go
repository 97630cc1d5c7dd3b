package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/core/host"
	"github.com/dep2p/go-ucnode/internal/core/relay/pb"
	"github.com/dep2p/go-ucnode/internal/util/framing"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/protocolids"
	"github.com/dep2p/go-ucnode/pkg/types"
)

const (
	// handshakeTimeout hop/stop 握手超时
	handshakeTimeout = 30 * time.Second

	// maxInboundHop 同时处理的 hop 流上限
	maxInboundHop = 256
)

// Option 服务端选项
type Option func(*Server)

// WithClock 设置预约有效期使用的时钟
func WithClock(c clock.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// Server 中继服务端
type Server struct {
	host    pkgif.Host
	cfg     config.RelayConfig
	clock   clock.Clock
	logger  *slog.Logger
	limiter *limiter

	mu           sync.Mutex
	reservations map[types.PeerID]time.Time
	active       map[pkgif.Stream]struct{}

	closed atomic.Bool
	wg     sync.WaitGroup
}

// New 创建中继服务端
func New(h pkgif.Host, cfg config.RelayConfig, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Server{
		host:         h,
		cfg:          cfg,
		clock:        clock.New(),
		logger:       logger,
		limiter:      newLimiter(cfg.MaxReservations, cfg.MaxCircuits),
		reservations: make(map[types.PeerID]time.Time),
		active:       make(map[pkgif.Stream]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start 注册 hop 协议
func (s *Server) Start() {
	s.host.SetStreamHandler(protocolids.RelayHop, host.LimitHandler(maxInboundHop, s.handleHop))
}

// Stop 注销 hop 协议并重置所有电路
func (s *Server) Stop() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.host.RemoveStreamHandler(protocolids.RelayHop)

	s.mu.Lock()
	for st := range s.active {
		_ = st.Reset()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

// Reservations 返回未过期的预约数
func (s *Server) Reservations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gcLocked(s.clock.Now())
	return len(s.reservations)
}

// Circuits 返回活跃电路数
func (s *Server) Circuits() int {
	return s.limiter.activeCircuits()
}

// ============================================================================
//                              hop 协议
// ============================================================================

func (s *Server) handleHop(st pkgif.Stream) {
	if s.closed.Load() {
		_ = st.Reset()
		return
	}
	_ = st.SetDeadline(time.Now().Add(handshakeTimeout))

	b, err := framing.ReadMsg(st, pb.MaxMessageSize)
	if err != nil {
		_ = st.Reset()
		return
	}
	var msg pb.HopMessage
	if err := msg.Unmarshal(b); err != nil {
		s.fail(st, pb.StatusMalformedMessage)
		return
	}

	src := st.Conn().RemotePeer()
	if err := s.limiter.allowRequest(src, time.Now()); err != nil {
		s.fail(st, pb.StatusResourceLimitExceeded)
		return
	}

	switch msg.Type {
	case pb.HopReserve:
		s.handleReserve(st, src)
	case pb.HopConnect:
		s.handleConnect(st, src, &msg)
	default:
		s.fail(st, pb.StatusUnexpectedMessage)
	}
}

func (s *Server) handleReserve(st pkgif.Stream, p types.PeerID) {
	defer st.Close()
	if st.Conn().Stat().Transient {
		s.fail(st, pb.StatusPermissionDenied)
		return
	}

	now := s.clock.Now()
	expire := now.Add(s.cfg.ReservationTTL.Duration())

	s.mu.Lock()
	s.gcLocked(now)
	_, renewal := s.reservations[p]
	if !renewal {
		if err := s.limiter.allowReservation(len(s.reservations)); err != nil {
			s.mu.Unlock()
			s.logger.Debug("reservation refused", "peer", log.TruncateID(p.String(), 12), "error", err)
			s.fail(st, pb.StatusReservationRefused)
			return
		}
	}
	s.reservations[p] = expire
	s.mu.Unlock()

	resp := &pb.HopMessage{
		Type:   pb.HopStatus,
		Status: pb.StatusOK,
		Reservation: &pb.Reservation{
			Expire: uint64(expire.Unix()),
			Addrs:  s.publicAddrs(),
		},
		Limit: s.limit(),
	}
	if err := framing.WriteMsg(st, resp.Marshal()); err != nil {
		_ = st.Reset()
		return
	}
	s.logger.Debug("reservation accepted",
		"peer", log.TruncateID(p.String(), 12),
		"renewal", renewal)
}

func (s *Server) handleConnect(src pkgif.Stream, srcID types.PeerID, msg *pb.HopMessage) {
	if src.Conn().Stat().Transient {
		s.fail(src, pb.StatusPermissionDenied)
		return
	}
	if msg.Peer == nil || msg.Peer.ID == "" {
		s.fail(src, pb.StatusMalformedMessage)
		return
	}
	dest := msg.Peer.ID
	if !s.hasReservation(dest) {
		s.fail(src, pb.StatusNoReservation)
		return
	}
	if err := s.limiter.acquireCircuit(dest); err != nil {
		s.fail(src, pb.StatusResourceLimitExceeded)
		return
	}

	dst, err := s.openStop(srcID, dest)
	if err != nil {
		s.limiter.releaseCircuit(dest)
		s.logger.Debug("relay connect failed",
			"src", log.TruncateID(srcID.String(), 12),
			"dest", log.TruncateID(dest.String(), 12),
			"error", err)
		s.fail(src, pb.StatusConnectionFailed)
		return
	}

	ok := &pb.HopMessage{Type: pb.HopStatus, Status: pb.StatusOK, Limit: s.limit()}
	if err := framing.WriteMsg(src, ok.Marshal()); err != nil {
		s.limiter.releaseCircuit(dest)
		_ = src.Reset()
		_ = dst.Reset()
		return
	}

	if !s.track(src, dst) {
		s.limiter.releaseCircuit(dest)
		_ = src.Reset()
		_ = dst.Reset()
		return
	}
	s.logger.Debug("circuit opened",
		"src", log.TruncateID(srcID.String(), 12),
		"dest", log.TruncateID(dest.String(), 12))

	s.splice(src, dst)
	s.untrack(src, dst)
	s.limiter.releaseCircuit(dest)
}

// openStop 在目标节点上打开 stop 流并完成握手
func (s *Server) openStop(src, dest types.PeerID) (pkgif.Stream, error) {
	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()

	st, err := s.host.NewStream(ctx, dest, protocolids.RelayStop)
	if err != nil {
		return nil, err
	}
	_ = st.SetDeadline(time.Now().Add(handshakeTimeout))

	req := &pb.StopMessage{Type: pb.StopConnect, Peer: &pb.Peer{ID: src}, Limit: s.limit()}
	if err := framing.WriteMsg(st, req.Marshal()); err != nil {
		_ = st.Reset()
		return nil, err
	}
	b, err := framing.ReadMsg(st, pb.MaxMessageSize)
	if err != nil {
		_ = st.Reset()
		return nil, err
	}
	var resp pb.StopMessage
	if err := resp.Unmarshal(b); err != nil {
		_ = st.Reset()
		return nil, err
	}
	if resp.Type != pb.StopStatus || resp.Status != pb.StatusOK {
		_ = st.Reset()
		return nil, errors.New("stop handshake refused: " + resp.Status.String())
	}
	return st, nil
}

// splice 双向转发直到两个方向都结束
//
// 单方向达到字节上限或出错时两端都被重置。
func (s *Server) splice(a, b pkgif.Stream) {
	deadline := time.Now().Add(s.cfg.CircuitDuration.Duration())
	_ = a.SetDeadline(deadline)
	_ = b.SetDeadline(deadline)

	limit := s.cfg.CircuitData
	var wg sync.WaitGroup
	wg.Add(2)
	pipe := func(dst, src pkgif.Stream) {
		defer wg.Done()
		if copyLimited(dst, src, limit) {
			_ = dst.CloseWrite()
			return
		}
		_ = src.Reset()
		_ = dst.Reset()
	}
	go pipe(b, a)
	go pipe(a, b)
	wg.Wait()

	_ = a.Close()
	_ = b.Close()
}

// copyLimited 转发数据，源正常结束时返回 true
func copyLimited(dst io.Writer, src io.Reader, limit int64) bool {
	if limit <= 0 {
		_, err := io.Copy(dst, src)
		return err == nil
	}
	_, err := io.CopyN(dst, src, limit)
	return errors.Is(err, io.EOF)
}

// ============================================================================
//                              内部方法
// ============================================================================

func (s *Server) fail(st pkgif.Stream, status pb.Status) {
	msg := &pb.HopMessage{Type: pb.HopStatus, Status: status}
	if err := framing.WriteMsg(st, msg.Marshal()); err != nil {
		_ = st.Reset()
		return
	}
	_ = st.Close()
}

func (s *Server) hasReservation(p types.PeerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gcLocked(s.clock.Now())
	_, ok := s.reservations[p]
	return ok
}

func (s *Server) gcLocked(now time.Time) {
	for p, exp := range s.reservations {
		if !now.Before(exp) {
			delete(s.reservations, p)
		}
	}
}

func (s *Server) track(ss ...pkgif.Stream) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return false
	}
	for _, st := range ss {
		s.active[st] = struct{}{}
	}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(ss ...pkgif.Stream) {
	s.mu.Lock()
	for _, st := range ss {
		delete(s.active, st)
	}
	s.mu.Unlock()
	s.wg.Done()
}

// publicAddrs 预约响应中公告的中继地址（不含电路地址）
func (s *Server) publicAddrs() []multiaddr.Multiaddr {
	var out []multiaddr.Multiaddr
	for _, a := range s.host.Addrs() {
		if !a.HasProtocol(multiaddr.P_CIRCUIT) {
			out = append(out, a)
		}
	}
	return out
}

func (s *Server) limit() *pb.Limit {
	return &pb.Limit{
		Duration: uint32(s.cfg.CircuitDuration.Duration() / time.Second),
		Data:     uint64(s.cfg.CircuitData),
	}
}
