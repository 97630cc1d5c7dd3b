package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dep2p/go-ucnode/internal/core/transport/upgradelistener"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// ErrTransportClosed 传输层已关闭
var ErrTransportClosed = errors.New("tcp transport closed")

// DefaultDialTimeout 默认拨号超时
const DefaultDialTimeout = 15 * time.Second

// keepAlivePeriod TCP keepalive 周期
const keepAlivePeriod = 30 * time.Second

// ============================================================================
//                              Transport 实现
// ============================================================================

// Transport TCP 传输层实现
type Transport struct {
	upgrader    pkgif.Upgrader
	dialTimeout time.Duration
	logger      *slog.Logger

	listeners   map[*upgradelistener.Listener]struct{}
	listenersMu sync.Mutex

	closed atomic.Bool
}

// 确保实现 Transport 接口
var _ pkgif.Transport = (*Transport)(nil)

// New 创建 TCP 传输层
func New(u pkgif.Upgrader, dialTimeout time.Duration, logger *slog.Logger) *Transport {
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Transport{
		upgrader:    u,
		dialTimeout: dialTimeout,
		logger:      logger,
		listeners:   make(map[*upgradelistener.Listener]struct{}),
	}
}

// ============================================================================
//                              Transport 接口实现
// ============================================================================

// CanDial 检查是否可以拨号到指定地址
//
// 只接受 <host>/tcp/<port>，末尾的 /p2p 段忽略。
func (t *Transport) CanDial(addr multiaddr.Multiaddr) bool {
	if t.closed.Load() || addr == nil {
		return false
	}
	tpt, _ := multiaddr.SplitP2P(addr)
	if tpt == nil {
		return false
	}
	codes := tpt.ProtoCodes()
	if len(codes) != 2 || codes[1] != multiaddr.P_TCP {
		return false
	}
	switch codes[0] {
	case multiaddr.P_IP4, multiaddr.P_IP6, multiaddr.P_DNS, multiaddr.P_DNS4, multiaddr.P_DNS6:
		return true
	}
	return false
}

// Dial 建立出站连接并升级
func (t *Transport) Dial(ctx context.Context, raddr multiaddr.Multiaddr, peer types.PeerID) (pkgif.CapableConn, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	tpt, _ := multiaddr.SplitP2P(raddr)
	network, hostport, err := multiaddr.HostPort(tpt)
	if err != nil || network != "tcp" {
		return nil, fmt.Errorf("invalid tcp address %s: %w", raddr, err)
	}

	dialer := &net.Dialer{Timeout: t.dialTimeout, KeepAlive: keepAlivePeriod}
	conn, err := dialer.DialContext(ctx, "tcp", hostport)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", hostport, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	laddr, err := multiaddr.FromNetAddr(conn.LocalAddr())
	if err != nil {
		conn.Close()
		return nil, err
	}
	return t.upgrader.Upgrade(ctx, t, conn, types.DirOutbound, peer, laddr, tpt)
}

// Listen 监听入站连接
//
// 返回的监听器报告实际绑定的端口。
func (t *Transport) Listen(laddr multiaddr.Multiaddr) (pkgif.Listener, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	if !t.CanDial(laddr) {
		return nil, fmt.Errorf("cannot listen on %s", laddr)
	}
	network, hostport, err := multiaddr.HostPort(laddr)
	if err != nil {
		return nil, err
	}
	nl, err := net.Listen(network, hostport)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", hostport, err)
	}
	bound, err := multiaddr.FromNetAddr(nl.Addr())
	if err != nil {
		nl.Close()
		return nil, err
	}

	l := upgradelistener.New(nl, bound, t.upgrader, t, remoteMultiaddr, t.logger)

	t.listenersMu.Lock()
	t.listeners[l] = struct{}{}
	t.listenersMu.Unlock()

	t.logger.Debug("tcp listening", "addr", bound)
	return &listener{Listener: l, t: t}, nil
}

// Protocols 返回支持的协议
func (t *Transport) Protocols() []int {
	return []int{multiaddr.P_TCP}
}

// Proxy TCP 是直连传输
func (t *Transport) Proxy() bool {
	return false
}

// Close 关闭传输层及其全部监听器
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.listenersMu.Lock()
	ls := make([]*upgradelistener.Listener, 0, len(t.listeners))
	for l := range t.listeners {
		ls = append(ls, l)
	}
	t.listeners = make(map[*upgradelistener.Listener]struct{})
	t.listenersMu.Unlock()

	var lastErr error
	for _, l := range ls {
		if err := l.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			lastErr = err
		}
	}
	return lastErr
}

func (t *Transport) forget(l *upgradelistener.Listener) {
	t.listenersMu.Lock()
	delete(t.listeners, l)
	t.listenersMu.Unlock()
}

// listener 关闭时从传输层移除
type listener struct {
	*upgradelistener.Listener
	t *Transport
}

func (l *listener) Close() error {
	l.t.forget(l.Listener)
	return l.Listener.Close()
}

func remoteMultiaddr(c net.Conn) (multiaddr.Multiaddr, error) {
	return multiaddr.FromNetAddr(c.RemoteAddr())
}
