package quic

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"

	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// 默认参数
const (
	DefaultDialTimeout     = 15 * time.Second
	DefaultMaxIdleTimeout  = 30 * time.Second
	DefaultKeepAlivePeriod = 15 * time.Second
	maxIncomingStreams     = 1000
)

var quicV1Component = multiaddr.StringCast("/quic-v1")

// Transport QUIC 传输层实现
type Transport struct {
	localPeer   types.PeerID
	tlsConf     *tls.Config
	quicConf    *quic.Config
	dialTimeout time.Duration
	logger      *slog.Logger

	mu sync.Mutex
	// sockets 共享 UDP socket，监听 socket 在前
	sockets   []*quic.Transport
	listeners map[*listener]struct{}

	closed atomic.Bool
}

var _ pkgif.Transport = (*Transport)(nil)

// New 创建 QUIC 传输层
func New(priv crypto.PrivateKey, dialTimeout time.Duration, logger *slog.Logger) (*Transport, error) {
	id, err := crypto.PeerIDFromPrivateKey(priv)
	if err != nil {
		return nil, err
	}
	cert, err := newCertificate(priv)
	if err != nil {
		return nil, err
	}
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Transport{
		localPeer: id,
		tlsConf:   newTLSConfig(cert),
		quicConf: &quic.Config{
			MaxIdleTimeout:     DefaultMaxIdleTimeout,
			KeepAlivePeriod:    DefaultKeepAlivePeriod,
			MaxIncomingStreams: maxIncomingStreams,
		},
		dialTimeout: dialTimeout,
		logger:      logger,
		listeners:   make(map[*listener]struct{}),
	}, nil
}

// CanDial 只接受 <ip>/udp/<port>/quic-v1
func (t *Transport) CanDial(addr multiaddr.Multiaddr) bool {
	if t.closed.Load() || addr == nil {
		return false
	}
	tpt, _ := multiaddr.SplitP2P(addr)
	if tpt == nil {
		return false
	}
	codes := tpt.ProtoCodes()
	if len(codes) != 3 || codes[1] != multiaddr.P_UDP || codes[2] != multiaddr.P_QUIC_V1 {
		return false
	}
	return codes[0] == multiaddr.P_IP4 || codes[0] == multiaddr.P_IP6
}

// socketFor 返回用于拨号的共享 socket
//
// 优先复用同地址族的监听 socket，没有时创建一个仅用于拨号的 socket。
func (t *Transport) socketFor(raddr *net.UDPAddr) (*quic.Transport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	wantV4 := raddr.IP.To4() != nil
	for _, s := range t.sockets {
		la, ok := s.Conn.LocalAddr().(*net.UDPAddr)
		if ok && (la.IP.To4() != nil) == wantV4 {
			return s, nil
		}
	}
	network := "udp6"
	if wantV4 {
		network = "udp4"
	}
	pc, err := net.ListenUDP(network, nil)
	if err != nil {
		return nil, err
	}
	s := &quic.Transport{Conn: pc}
	t.sockets = append(t.sockets, s)
	return s, nil
}

// Dial 建立 QUIC 连接
//
// peer 非空时校验证书中的身份。
func (t *Transport) Dial(ctx context.Context, raddr multiaddr.Multiaddr, peer types.PeerID) (pkgif.CapableConn, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	tpt, _ := multiaddr.SplitP2P(raddr)
	udpAddr, err := tpt.ToUDPAddr()
	if err != nil {
		return nil, fmt.Errorf("invalid quic address %s: %w", raddr, err)
	}
	sock, err := t.socketFor(udpAddr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, t.dialTimeout)
	defer cancel()

	qc, err := sock.Dial(ctx, udpAddr, t.tlsConf.Clone(), t.quicConf)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", udpAddr, err)
	}
	c, err := newConn(qc, t)
	if err != nil {
		_ = qc.CloseWithError(closeMismatch, err.Error())
		return nil, err
	}
	if peer != "" && c.remotePeer != peer {
		_ = qc.CloseWithError(closeMismatch, "peer id mismatch")
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrPeerIDMismatch, peer, c.remotePeer)
	}
	return c, nil
}

// Listen 在 UDP 地址上监听 QUIC 连接
func (t *Transport) Listen(laddr multiaddr.Multiaddr) (pkgif.Listener, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	if !t.CanDial(laddr) {
		return nil, fmt.Errorf("cannot listen on %s", laddr)
	}
	udpAddr, err := laddr.ToUDPAddr()
	if err != nil {
		return nil, err
	}
	network := "udp6"
	if udpAddr.IP.To4() != nil {
		network = "udp4"
	}
	pc, err := net.ListenUDP(network, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", udpAddr, err)
	}
	sock := &quic.Transport{Conn: pc}
	ql, err := sock.Listen(t.tlsConf.Clone(), t.quicConf)
	if err != nil {
		sock.Close()
		return nil, err
	}
	bound, err := toQuicMultiaddr(pc.LocalAddr())
	if err != nil {
		ql.Close()
		sock.Close()
		return nil, err
	}

	l := &listener{ql: ql, sock: sock, t: t, laddr: bound}
	t.mu.Lock()
	// 监听 socket 放在最前，拨号优先复用
	t.sockets = append([]*quic.Transport{sock}, t.sockets...)
	t.listeners[l] = struct{}{}
	t.mu.Unlock()

	t.logger.Debug("quic listening", "addr", bound)
	return l, nil
}

func (t *Transport) removeListener(l *listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.listeners, l)
	for i, s := range t.sockets {
		if s == l.sock {
			t.sockets = append(t.sockets[:i], t.sockets[i+1:]...)
			break
		}
	}
}

// Protocols 返回支持的协议
func (t *Transport) Protocols() []int {
	return []int{multiaddr.P_QUIC_V1}
}

// Proxy QUIC 是直连传输
func (t *Transport) Proxy() bool { return false }

// Close 关闭监听器与全部共享 socket
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.mu.Lock()
	ls := t.listeners
	socks := t.sockets
	t.listeners = make(map[*listener]struct{})
	t.sockets = nil
	t.mu.Unlock()

	var errs []error
	for l := range ls {
		errs = append(errs, l.ql.Close())
	}
	for _, s := range socks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// toQuicMultiaddr 将 UDP 地址转为 /udp/<port>/quic-v1 多地址
func toQuicMultiaddr(a net.Addr) (multiaddr.Multiaddr, error) {
	m, err := multiaddr.FromNetAddr(a)
	if err != nil {
		return nil, err
	}
	return m.Encapsulate(quicV1Component), nil
}
