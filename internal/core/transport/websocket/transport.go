package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/dep2p/go-ucnode/internal/core/transport/upgradelistener"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// ErrTransportClosed 传输层已关闭
var ErrTransportClosed = errors.New("websocket transport closed")

// DefaultDialTimeout 默认拨号超时（含 HTTP 升级）
const DefaultDialTimeout = 15 * time.Second

var (
	wsComponent  = multiaddr.StringCast("/ws")
	wssComponent = multiaddr.StringCast("/wss")
)

// Transport WebSocket 传输层实现
type Transport struct {
	upgrader    pkgif.Upgrader
	dialTimeout time.Duration
	logger      *slog.Logger

	mu        sync.Mutex
	listeners map[*upgradelistener.Listener]struct{}

	closed atomic.Bool
}

var _ pkgif.Transport = (*Transport)(nil)

// New 创建 WebSocket 传输层
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

// CanDial 接受 <host>/tcp/<port>/ws 与 <host>/tcp/<port>/wss
func (t *Transport) CanDial(addr multiaddr.Multiaddr) bool {
	if t.closed.Load() || addr == nil {
		return false
	}
	tpt, _ := multiaddr.SplitP2P(addr)
	if tpt == nil {
		return false
	}
	codes := tpt.ProtoCodes()
	if len(codes) != 3 || codes[1] != multiaddr.P_TCP {
		return false
	}
	if codes[2] != multiaddr.P_WS && codes[2] != multiaddr.P_WSS {
		return false
	}
	switch codes[0] {
	case multiaddr.P_IP4, multiaddr.P_IP6, multiaddr.P_DNS, multiaddr.P_DNS4, multiaddr.P_DNS6:
		return true
	}
	return false
}

// toURL 将多地址转换为 ws:// 或 wss:// URL
func toURL(addr multiaddr.Multiaddr) (*url.URL, error) {
	_, hostport, err := multiaddr.HostPort(addr)
	if err != nil {
		return nil, err
	}
	scheme := "ws"
	if addr.HasProtocol(multiaddr.P_WSS) {
		scheme = "wss"
	}
	return &url.URL{Scheme: scheme, Host: hostport, Path: "/"}, nil
}

// Dial 建立 WebSocket 连接并升级
func (t *Transport) Dial(ctx context.Context, raddr multiaddr.Multiaddr, peer types.PeerID) (pkgif.CapableConn, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	tpt, _ := multiaddr.SplitP2P(raddr)
	u, err := toURL(tpt)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket address %s: %w", raddr, err)
	}

	dialer := ws.Dialer{
		HandshakeTimeout: t.dialTimeout,
		NetDialContext:   (&net.Dialer{Timeout: t.dialTimeout}).DialContext,
	}
	wc, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	c := newConn(wc)

	laddr, err := multiaddr.FromNetAddr(c.LocalAddr())
	if err != nil {
		c.Close()
		return nil, err
	}
	return t.upgrader.Upgrade(ctx, t, c, types.DirOutbound, peer, laddr.Encapsulate(wsComponent), tpt)
}

// Listen 在 /tcp/<port>/ws 上启动 HTTP 服务
//
// 不支持 /wss 监听，TLS 终结交给前置代理。
func (t *Transport) Listen(laddr multiaddr.Multiaddr) (pkgif.Listener, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	if !t.CanDial(laddr) || laddr.HasProtocol(multiaddr.P_WSS) {
		return nil, fmt.Errorf("cannot listen on %s", laddr)
	}
	_, hostport, err := multiaddr.HostPort(laddr)
	if err != nil {
		return nil, err
	}
	nl, err := net.Listen("tcp", hostport)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", hostport, err)
	}
	bound, err := multiaddr.FromNetAddr(nl.Addr())
	if err != nil {
		nl.Close()
		return nil, err
	}
	bound = bound.Encapsulate(wsComponent)

	l := upgradelistener.New(newListener(nl), bound, t.upgrader, t, remoteMultiaddr, t.logger)
	t.mu.Lock()
	t.listeners[l] = struct{}{}
	t.mu.Unlock()

	t.logger.Debug("websocket listening", "addr", bound)
	return &trackedListener{Listener: l, t: t}, nil
}

// Protocols 返回支持的协议
func (t *Transport) Protocols() []int {
	return []int{multiaddr.P_WS, multiaddr.P_WSS}
}

// Proxy WebSocket 是直连传输
func (t *Transport) Proxy() bool { return false }

// Close 关闭传输层及其全部监听器
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.mu.Lock()
	ls := t.listeners
	t.listeners = make(map[*upgradelistener.Listener]struct{})
	t.mu.Unlock()

	var lastErr error
	for l := range ls {
		if err := l.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			lastErr = err
		}
	}
	return lastErr
}

// trackedListener 关闭时从传输层的监听器表中移除
type trackedListener struct {
	*upgradelistener.Listener
	t *Transport
}

func (l *trackedListener) Close() error {
	l.t.mu.Lock()
	delete(l.t.listeners, l.Listener)
	l.t.mu.Unlock()
	return l.Listener.Close()
}

func remoteMultiaddr(c net.Conn) (multiaddr.Multiaddr, error) {
	ra, err := multiaddr.FromNetAddr(c.RemoteAddr())
	if err != nil {
		return nil, err
	}
	return ra.Encapsulate(wsComponent), nil
}
