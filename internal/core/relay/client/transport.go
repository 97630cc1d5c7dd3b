package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dep2p/go-ucnode/internal/core/host"
	"github.com/dep2p/go-ucnode/internal/core/relay/pb"
	"github.com/dep2p/go-ucnode/internal/core/transport/upgradelistener"
	"github.com/dep2p/go-ucnode/internal/util/framing"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/protocolids"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// stopHandshakeTimeout stop 协议握手超时
const stopHandshakeTimeout = 30 * time.Second

// maxInboundStop 同时处理的 stop 握手数
const maxInboundStop = 64

// Host 中继客户端需要的主机能力
type Host interface {
	pkgif.Host
	SetAddrSource(source string, addrs []multiaddr.Multiaddr)
}

// ============================================================================
//                              Transport 实现
// ============================================================================

// Transport /p2p-circuit 代理传输
type Transport struct {
	host     Host
	upgrader pkgif.Upgrader
	logger   *slog.Logger

	mu       sync.Mutex
	listener *rawListener

	closed atomic.Bool
}

var _ pkgif.Transport = (*Transport)(nil)

// New 创建中继传输并注册 stop 协议处理器
func New(h Host, u pkgif.Upgrader, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = log.Discard()
	}
	t := &Transport{host: h, upgrader: u, logger: logger}
	h.SetStreamHandler(protocolids.RelayStop, host.LimitHandler(maxInboundStop, t.handleStop))
	return t
}

// CanDial 接受 .../p2p/<relay>/p2p-circuit[/p2p/<dest>]
func (t *Transport) CanDial(addr multiaddr.Multiaddr) bool {
	if t.closed.Load() {
		return false
	}
	_, ok := parseCircuitAddr(addr)
	return ok
}

// Dial 经中继建立到目标的连接
func (t *Transport) Dial(ctx context.Context, raddr multiaddr.Multiaddr, peer types.PeerID) (pkgif.CapableConn, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	ca, ok := parseCircuitAddr(raddr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCircuitAddr, raddr)
	}
	dest := peer
	if dest == "" {
		dest = ca.dest
	}
	if dest == "" {
		return nil, fmt.Errorf("%w: no destination in %s", ErrInvalidCircuitAddr, raddr)
	}
	if ca.relayAddr != nil {
		t.host.Peerstore().AddAddrs(ca.relay, []multiaddr.Multiaddr{ca.relayAddr}, pkgif.TempAddrTTL)
	}

	s, err := t.connect(ctx, ca.relay, dest)
	if err != nil {
		return nil, err
	}

	remote, err := CircuitAddr(ca.relayAddr, ca.relay)
	if err != nil {
		_ = s.Reset()
		return nil, err
	}
	local := circuitListenAddr()
	return t.upgrader.Upgrade(ctx, t, newCircuitConn(s, local, remote), types.DirOutbound, dest, local, remote)
}

// connect 在中继上请求 CONNECT，成功后返回的流即为电路
func (t *Transport) connect(ctx context.Context, relay, dest types.PeerID) (pkgif.Stream, error) {
	s, err := t.host.NewStream(ctx, relay, protocolids.RelayHop)
	if err != nil {
		return nil, fmt.Errorf("open hop stream to %s: %w", log.TruncateID(relay.String(), 12), err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = s.SetDeadline(dl)
	}

	req := &pb.HopMessage{Type: pb.HopConnect, Peer: &pb.Peer{ID: dest}}
	if err := framing.WriteMsg(s, req.Marshal()); err != nil {
		_ = s.Reset()
		return nil, err
	}
	b, err := framing.ReadMsg(s, pb.MaxMessageSize)
	if err != nil {
		_ = s.Reset()
		return nil, err
	}
	var resp pb.HopMessage
	if err := resp.Unmarshal(b); err != nil {
		_ = s.Reset()
		return nil, err
	}
	if resp.Type != pb.HopStatus {
		_ = s.Reset()
		return nil, ErrUnexpectedMessage
	}
	if resp.Status != pb.StatusOK {
		_ = s.Reset()
		return nil, &StatusError{Op: "connect", Status: resp.Status}
	}
	_ = s.SetDeadline(time.Time{})
	return s, nil
}

// Listen 只接受 /p2p-circuit，同一时间只有一个监听器
func (t *Transport) Listen(laddr multiaddr.Multiaddr) (pkgif.Listener, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	if !laddr.Equal(circuitListenAddr()) {
		return nil, fmt.Errorf("%w: listen on %s", ErrInvalidCircuitAddr, laddr)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener != nil {
		return nil, fmt.Errorf("relay: already listening on %s", laddr)
	}
	raw := newRawListener(func() {
		t.mu.Lock()
		t.listener = nil
		t.mu.Unlock()
	})
	t.listener = raw
	return upgradelistener.New(raw, laddr, t.upgrader, t, remoteOf, t.logger), nil
}

// Protocols 返回 /p2p-circuit
func (t *Transport) Protocols() []int {
	return []int{multiaddr.P_CIRCUIT}
}

// Proxy 中继传输依赖到中继的现有连接
func (t *Transport) Proxy() bool {
	return true
}

// Close 关闭传输并注销 stop 协议
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.host.RemoveStreamHandler(protocolids.RelayStop)
	t.mu.Lock()
	l := t.listener
	t.mu.Unlock()
	if l != nil {
		return l.Close()
	}
	return nil
}

// ============================================================================
//                              入站电路
// ============================================================================

// handleStop 处理中继转来的电路请求
func (t *Transport) handleStop(s pkgif.Stream) {
	_ = s.SetDeadline(time.Now().Add(stopHandshakeTimeout))

	b, err := framing.ReadMsg(s, pb.MaxMessageSize)
	if err != nil {
		_ = s.Reset()
		return
	}
	var msg pb.StopMessage
	if err := msg.Unmarshal(b); err != nil {
		t.writeStopStatus(s, pb.StatusMalformedMessage)
		_ = s.Reset()
		return
	}
	if msg.Type != pb.StopConnect || msg.Peer == nil || msg.Peer.ID == "" {
		t.writeStopStatus(s, pb.StatusUnexpectedMessage)
		_ = s.Reset()
		return
	}

	t.mu.Lock()
	l := t.listener
	t.mu.Unlock()
	if l == nil {
		t.writeStopStatus(s, pb.StatusConnectionFailed)
		_ = s.Close()
		return
	}

	if err := t.writeStopStatus(s, pb.StatusOK); err != nil {
		_ = s.Reset()
		return
	}
	_ = s.SetDeadline(time.Time{})

	relay := s.Conn().RemotePeer()
	remote, err := CircuitAddr(s.Conn().RemoteMultiaddr(), relay)
	if err != nil {
		_ = s.Reset()
		return
	}
	t.logger.Debug("incoming relayed connection",
		"src", log.TruncateID(msg.Peer.ID.String(), 12),
		"relay", log.TruncateID(relay.String(), 12))

	if !l.deliver(newCircuitConn(s, circuitListenAddr(), remote)) {
		_ = s.Reset()
	}
}

func (t *Transport) writeStopStatus(s pkgif.Stream, status pb.Status) error {
	msg := &pb.StopMessage{Type: pb.StopStatus, Status: status}
	return framing.WriteMsg(s, msg.Marshal())
}

func remoteOf(c net.Conn) (multiaddr.Multiaddr, error) {
	cc, ok := c.(*circuitConn)
	if !ok {
		return nil, ErrInvalidCircuitAddr
	}
	return cc.raddr, nil
}

func circuitListenAddr() multiaddr.Multiaddr {
	return multiaddr.StringCast("/p2p-circuit")
}

// rawListener 把 stop 处理器收到的电路交给 upgradelistener
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
	return &netAddr{circuitListenAddr()}
}
