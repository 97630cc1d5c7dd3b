package webrtc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/datachannel"
	"github.com/pion/webrtc/v4"

	"github.com/dep2p/go-ucnode/internal/core/host"
	"github.com/dep2p/go-ucnode/internal/core/transport/upgradelistener"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/protocolids"
	"github.com/dep2p/go-ucnode/pkg/types"
)

const (
	// signalingTimeout 入站信令与建链的整体超时
	signalingTimeout = 30 * time.Second
	// maxInboundSignaling 同时处理的入站信令数
	maxInboundSignaling = 16
	// dataChannelID 双方预先协商的数据通道 id
	dataChannelID uint16 = 0
)

// ============================================================================
//                              Transport 实现
// ============================================================================

// Transport 经中继信令的 WebRTC 传输
type Transport struct {
	host       pkgif.Host
	upgrader   pkgif.Upgrader
	iceServers []webrtc.ICEServer
	api        *webrtc.API
	logger     *slog.Logger

	mu       sync.Mutex
	listener *rawListener

	closed atomic.Bool
}

var _ pkgif.Transport = (*Transport)(nil)

// Option 传输选项
type Option func(*options)

type options struct {
	loopback bool
}

// WithLoopbackCandidates 收集回环地址候选（同机测试使用）
func WithLoopbackCandidates() Option {
	return func(o *options) { o.loopback = true }
}

// New 创建 WebRTC 传输并注册信令处理器
//
// iceServers 为 stun:/turn: URL，为空时只使用主机候选。
func New(h pkgif.Host, u pkgif.Upgrader, iceServers []string, logger *slog.Logger, opts ...Option) *Transport {
	if logger == nil {
		logger = log.Discard()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	se := webrtc.SettingEngine{LoggerFactory: &loggerFactory{logger: logger}}
	se.DetachDataChannels()
	se.SetIncludeLoopbackCandidate(o.loopback)

	t := &Transport{
		host:     h,
		upgrader: u,
		api:      webrtc.NewAPI(webrtc.WithSettingEngine(se)),
		logger:   logger,
	}
	if len(iceServers) > 0 {
		t.iceServers = []webrtc.ICEServer{{URLs: append([]string(nil), iceServers...)}}
	}
	h.SetStreamHandler(protocolids.WebRTCSignaling, host.LimitHandler(maxInboundSignaling, t.handleSignaling))
	return t
}

// CanDial 接受 .../p2p-circuit/webrtc[/p2p/<dest>]
func (t *Transport) CanDial(addr multiaddr.Multiaddr) bool {
	if t.closed.Load() {
		return false
	}
	_, _, ok := splitWebRTCAddr(addr)
	return ok
}

// Dial 经中继交换信令后建立直连的 WebRTC 连接
func (t *Transport) Dial(ctx context.Context, raddr multiaddr.Multiaddr, peer types.PeerID) (pkgif.CapableConn, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	circuit, dest, ok := splitWebRTCAddr(raddr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddr, raddr)
	}
	if peer != "" {
		dest = peer
	}
	if dest == "" {
		return nil, fmt.Errorf("%w: no destination in %s", ErrInvalidAddr, raddr)
	}

	relayed, err := t.host.Network().DialAddr(ctx, circuit, dest)
	if err != nil {
		return nil, fmt.Errorf("dial relayed connection: %w", err)
	}
	defer relayed.Close()

	s, err := t.host.NewStream(ctx, dest, protocolids.WebRTCSignaling)
	if err != nil {
		return nil, fmt.Errorf("open signaling stream: %w", err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = s.SetDeadline(dl)
	}

	c, err := t.establish(ctx, s, true)
	if err != nil {
		_ = s.Reset()
		return nil, err
	}
	_ = s.Close()

	t.logger.Debug("webrtc connection established",
		"peer", log.TruncateID(dest.String(), 12),
		"remote", c.raddr)
	return t.upgrader.Upgrade(ctx, t, c, types.DirOutbound, dest, c.laddr, c.raddr)
}

// Listen 只接受 /webrtc，同一时间只有一个监听器
func (t *Transport) Listen(laddr multiaddr.Multiaddr) (pkgif.Listener, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	if !laddr.Equal(listenAddr()) {
		return nil, fmt.Errorf("%w: listen on %s", ErrInvalidAddr, laddr)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener != nil {
		return nil, fmt.Errorf("webrtc: already listening on %s", laddr)
	}
	raw := newRawListener(func() {
		t.mu.Lock()
		t.listener = nil
		t.mu.Unlock()
	})
	t.listener = raw
	return upgradelistener.New(raw, laddr, t.upgrader, t, remoteOf, t.logger), nil
}

// Protocols 返回 /webrtc
func (t *Transport) Protocols() []int {
	return []int{multiaddr.P_WEBRTC}
}

// Proxy 拨号依赖中继连接完成信令
func (t *Transport) Proxy() bool {
	return true
}

// Close 关闭传输并注销信令协议
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.host.RemoveStreamHandler(protocolids.WebRTCSignaling)
	t.mu.Lock()
	l := t.listener
	t.mu.Unlock()
	if l != nil {
		return l.Close()
	}
	return nil
}

// ============================================================================
//                              入站信令
// ============================================================================

func (t *Transport) handleSignaling(s pkgif.Stream) {
	t.mu.Lock()
	l := t.listener
	t.mu.Unlock()
	if l == nil {
		_ = s.Reset()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), signalingTimeout)
	defer cancel()
	_ = s.SetDeadline(time.Now().Add(signalingTimeout))

	remote := s.Conn().RemotePeer()
	c, err := t.establish(ctx, s, false)
	if err != nil {
		t.logger.Debug("inbound webrtc failed",
			"peer", log.TruncateID(remote.String(), 12),
			"error", err)
		_ = s.Reset()
		return
	}
	_ = s.Close()

	t.logger.Debug("incoming webrtc connection",
		"peer", log.TruncateID(remote.String(), 12),
		"remote", c.raddr)
	if !l.deliver(c) {
		_ = c.Close()
	}
}

// ============================================================================
//                              建链
// ============================================================================

// establish 在信令流上完成 offer/answer 交换并等待数据通道打开
//
// initiator 为 true 时本端发送 offer。
func (t *Transport) establish(ctx context.Context, s pkgif.Stream, initiator bool) (*dcConn, error) {
	pc, err := t.api.NewPeerConnection(webrtc.Configuration{ICEServers: t.iceServers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	failed := make(chan struct{})
	var failOnce sync.Once
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			failOnce.Do(func() { close(failed) })
		}
	})

	negotiated := true
	id := dataChannelID
	dc, err := pc.CreateDataChannel("", &webrtc.DataChannelInit{Negotiated: &negotiated, ID: &id})
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	opened := make(chan detachResult, 1)
	dc.OnOpen(func() {
		rwc, err := dc.Detach()
		opened <- detachResult{rwc: rwc, err: err}
	})

	if initiator {
		err = t.offer(ctx, pc, s)
	} else {
		err = t.answer(ctx, pc, s)
	}
	if err != nil {
		_ = pc.Close()
		return nil, err
	}

	go t.readCandidates(pc, s)

	select {
	case r := <-opened:
		if r.err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("detach data channel: %w", r.err)
		}
		local, remote := selectedAddrs(pc)
		return newDCConn(r.rwc, pc, local, remote), nil
	case <-failed:
		_ = pc.Close()
		return nil, ErrConnectionFailed
	case <-ctx.Done():
		_ = pc.Close()
		return nil, ctx.Err()
	}
}

type detachResult struct {
	rwc datachannel.ReadWriteCloser
	err error
}

func (t *Transport) offer(ctx context.Context, pc *webrtc.PeerConnection, s pkgif.Stream) error {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := setLocal(ctx, pc, offer); err != nil {
		return err
	}
	if err := writeSignal(s, signalOffer, pc.LocalDescription().SDP); err != nil {
		return err
	}
	if err := writeSignal(s, signalCandidate, endOfCandidates); err != nil {
		return err
	}

	sdp, err := expectSignal(s, signalAnswer)
	if err != nil {
		return err
	}
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	return nil
}

func (t *Transport) answer(ctx context.Context, pc *webrtc.PeerConnection, s pkgif.Stream) error {
	sdp, err := expectSignal(s, signalOffer)
	if err != nil {
		return err
	}
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := pc.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("set remote offer: %w", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := setLocal(ctx, pc, answer); err != nil {
		return err
	}
	if err := writeSignal(s, signalAnswer, pc.LocalDescription().SDP); err != nil {
		return err
	}
	return writeSignal(s, signalCandidate, endOfCandidates)
}

// setLocal 设置本地描述并等待候选收集完成
func setLocal(ctx context.Context, pc *webrtc.PeerConnection, desc webrtc.SessionDescription) error {
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(desc); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	select {
	case <-gathered:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readCandidates 应用对端陆续发来的 ICE 候选，直到结束标记或流关闭
func (t *Transport) readCandidates(pc *webrtc.PeerConnection, s pkgif.Stream) {
	for {
		msg, err := readSignal(s)
		if err != nil {
			return
		}
		if msg.Type != signalCandidate {
			t.logger.Debug("ignoring signaling message", "type", msg.Type)
			continue
		}
		init, done, err := decodeCandidate(msg.Data)
		if err != nil {
			t.logger.Debug("bad ice candidate", "error", err)
			continue
		}
		if done {
			return
		}
		if err := pc.AddICECandidate(init); err != nil {
			t.logger.Debug("add ice candidate failed", "error", err)
		}
	}
}

// ============================================================================
//                              地址
// ============================================================================

// splitWebRTCAddr 拆出中继电路地址与目标
//
// .../p2p/<relay>/p2p-circuit/webrtc/p2p/<dest> 返回
// .../p2p/<relay>/p2p-circuit 与 <dest>。
func splitWebRTCAddr(addr multiaddr.Multiaddr) (multiaddr.Multiaddr, types.PeerID, bool) {
	if addr == nil {
		return nil, "", false
	}
	transport, id := multiaddr.SplitP2P(addr)
	parts := multiaddr.Split(transport)
	n := len(parts)
	if n < 3 {
		return nil, "", false
	}
	if parts[n-1].ProtoCodes()[0] != multiaddr.P_WEBRTC || parts[n-2].ProtoCodes()[0] != multiaddr.P_CIRCUIT {
		return nil, "", false
	}
	var dest types.PeerID
	if id != "" {
		p, err := types.ParsePeerID(id)
		if err != nil {
			return nil, "", false
		}
		dest = p
	}
	return multiaddr.Join(parts[:n-1]...), dest, true
}

// selectedAddrs 由选中的 ICE 候选对得到两端地址
func selectedAddrs(pc *webrtc.PeerConnection) (local, remote multiaddr.Multiaddr) {
	local, remote = listenAddr(), listenAddr()
	sctp := pc.SCTP()
	if sctp == nil || sctp.Transport() == nil {
		return
	}
	pair, err := sctp.Transport().ICETransport().GetSelectedCandidatePair()
	if err != nil || pair == nil {
		return
	}
	if m := candidateAddr(pair.Local); m != nil {
		local = m
	}
	if m := candidateAddr(pair.Remote); m != nil {
		remote = m
	}
	return
}

func candidateAddr(c *webrtc.ICECandidate) multiaddr.Multiaddr {
	if c == nil {
		return nil
	}
	ip := net.ParseIP(c.Address)
	if ip == nil {
		return nil
	}
	m, err := multiaddr.FromUDPAddr(&net.UDPAddr{IP: ip, Port: int(c.Port)})
	if err != nil {
		return nil
	}
	return m.Encapsulate(listenAddr())
}

func listenAddr() multiaddr.Multiaddr {
	return multiaddr.StringCast("/webrtc")
}

func remoteOf(c net.Conn) (multiaddr.Multiaddr, error) {
	dc, ok := c.(*dcConn)
	if !ok {
		return nil, ErrInvalidAddr
	}
	return dc.raddr, nil
}

// ============================================================================
//                              rawListener
// ============================================================================

// rawListener 把信令处理器建立的连接交给 upgradelistener
type rawListener struct {
	conns   chan net.Conn
	done    chan struct{}
	once    sync.Once
	onClose func()
}

func newRawListener(onClose func()) *rawListener {
	return &rawListener{
		conns:   make(chan net.Conn),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

func (l *rawListener) deliver(c net.Conn) bool {
	select {
	case l.conns <- c:
		return true
	case <-l.done:
		return false
	}
}

func (l *rawListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *rawListener) Close() error {
	l.once.Do(func() {
		close(l.done)
		l.onClose()
	})
	return nil
}

func (l *rawListener) Addr() net.Addr {
	return &netAddr{listenAddr()}
}
