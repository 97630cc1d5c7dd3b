package webtransport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/webtransport-go"

	"github.com/dep2p/go-ucnode/internal/core/security/noise"
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
)

// endpointPath 服务端 WebTransport 端点
const endpointPath = "/.well-known/libp2p-webtransport"

// 会话关闭错误码
const (
	closeNormal    webtransport.SessionErrorCode = 0
	closeHandshake webtransport.SessionErrorCode = 1
)

var webtransportComponent = multiaddr.StringCast("/quic-v1/webtransport")

// Transport WebTransport 拨号传输
type Transport struct {
	noise       *noise.Transport
	dialTimeout time.Duration
	quicConf    *quic.Config
	logger      *slog.Logger

	closed atomic.Bool
}

var _ pkgif.Transport = (*Transport)(nil)

// New 创建 WebTransport 传输
func New(priv crypto.PrivateKey, dialTimeout time.Duration, logger *slog.Logger) (*Transport, error) {
	if logger == nil {
		logger = log.Discard()
	}
	sec, err := noise.New(priv, log.Component(logger, "noise"))
	if err != nil {
		return nil, err
	}
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	return &Transport{
		noise:       sec,
		dialTimeout: dialTimeout,
		quicConf: &quic.Config{
			MaxIdleTimeout:                   DefaultMaxIdleTimeout,
			KeepAlivePeriod:                  DefaultKeepAlivePeriod,
			EnableDatagrams:                  true,
			EnableStreamResetPartialDelivery: true,
		},
		logger: logger,
	}, nil
}

// CanDial 接受 <ip|dns>/udp/<port>/quic-v1/webtransport，后跟任意个 /certhash
func (t *Transport) CanDial(addr multiaddr.Multiaddr) bool {
	if t.closed.Load() || addr == nil {
		return false
	}
	tpt, _ := multiaddr.SplitP2P(addr)
	if tpt == nil {
		return false
	}
	codes := tpt.ProtoCodes()
	if len(codes) < 4 {
		return false
	}
	switch codes[0] {
	case multiaddr.P_IP4, multiaddr.P_IP6, multiaddr.P_DNS, multiaddr.P_DNS4, multiaddr.P_DNS6:
	default:
		return false
	}
	if codes[1] != multiaddr.P_UDP || codes[2] != multiaddr.P_QUIC_V1 || codes[3] != multiaddr.P_WEBTRANSPORT {
		return false
	}
	for _, c := range codes[4:] {
		if c != multiaddr.P_CERTHASH {
			return false
		}
	}
	return true
}

// hostPort 取出地址的主机与端口
func hostPort(tpt multiaddr.Multiaddr) (string, string, error) {
	codes := tpt.ProtoCodes()
	host, err := tpt.ValueForProtocol(codes[0])
	if err != nil {
		return "", "", err
	}
	port, err := tpt.ValueForProtocol(multiaddr.P_UDP)
	if err != nil {
		return "", "", err
	}
	return host, port, nil
}

// tlsConfig 带 certhash 时跳过 CA 校验，改为比对证书哈希
func tlsConfig(host string, hashes []certHash) *tls.Config {
	conf := &tls.Config{MinVersion: tls.VersionTLS13}
	if net.ParseIP(host) == nil {
		conf.ServerName = host
	}
	if len(hashes) > 0 {
		conf.InsecureSkipVerify = true
		conf.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return verifyRawCerts(rawCerts, hashes)
		}
	}
	return conf
}

// Dial 建立 WebTransport 会话并完成 Noise 认证
//
// peer 为空时接受握手得到的任意身份。
func (t *Transport) Dial(ctx context.Context, raddr multiaddr.Multiaddr, peer types.PeerID) (pkgif.CapableConn, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	tpt, _ := multiaddr.SplitP2P(raddr)
	if !t.CanDial(tpt) {
		return nil, fmt.Errorf("invalid webtransport address %s", raddr)
	}
	host, port, err := hostPort(tpt)
	if err != nil {
		return nil, err
	}
	hashes, err := extractCertHashes(tpt)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, t.dialTimeout)
	defer cancel()

	d := &webtransport.Dialer{
		TLSClientConfig: tlsConfig(host, hashes),
		QUICConfig:      t.quicConf.Clone(),
	}
	defer d.Close()

	url := "https://" + net.JoinHostPort(host, port) + endpointPath + "?type=noise"
	_, sess, err := d.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", tpt, err)
	}

	sc, err := t.authenticate(ctx, sess, peer, hashes)
	if err != nil {
		_ = sess.CloseWithError(closeHandshake, err.Error())
		return nil, err
	}

	laddr, err := localMultiaddr(sess.LocalAddr())
	if err != nil {
		_ = sess.CloseWithError(closeHandshake, err.Error())
		return nil, err
	}
	t.logger.Debug("webtransport session established",
		"peer", log.TruncateID(sc.RemotePeer().String(), 12),
		"raddr", tpt)
	return &conn{
		sess:       sess,
		transport:  t,
		localPeer:  sc.LocalPeer(),
		remotePeer: sc.RemotePeer(),
		remotePub:  sc.RemotePublicKey(),
		laddr:      laddr,
		raddr:      tpt,
	}, nil
}

// authenticate 在会话的第一条流上执行 Noise 握手，结束后关闭该流
func (t *Transport) authenticate(ctx context.Context, sess *webtransport.Session, peer types.PeerID, hashes []certHash) (*noise.Conn, error) {
	str, err := sess.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("open handshake stream: %w", err)
	}
	sc, err := t.noise.SecureOutbound(ctx, &streamConn{Stream: str, sess: sess}, peer)
	if err != nil {
		str.CancelRead(streamReset)
		str.CancelWrite(streamReset)
		return nil, err
	}
	defer sc.Close()

	if len(hashes) > 0 {
		ext := sc.RemoteExtensions()
		if ext == nil {
			return nil, fmt.Errorf("%w: server advertised no certhashes", ErrCertHashMismatch)
		}
		if err := checkAdvertised(hashes, ext.WebTransportCerthashes); err != nil {
			return nil, err
		}
	}
	return sc, nil
}

func localMultiaddr(a net.Addr) (multiaddr.Multiaddr, error) {
	udp, ok := a.(*net.UDPAddr)
	if !ok {
		return nil, fmt.Errorf("unexpected local address %T", a)
	}
	m, err := multiaddr.FromUDPAddr(udp)
	if err != nil {
		return nil, err
	}
	return m.Encapsulate(webtransportComponent), nil
}

// Listen 本传输只拨号
func (t *Transport) Listen(multiaddr.Multiaddr) (pkgif.Listener, error) {
	return nil, ErrListenUnsupported
}

// Protocols 返回支持的协议
func (t *Transport) Protocols() []int {
	return []int{multiaddr.P_WEBTRANSPORT}
}

// Proxy WebTransport 是直连传输
func (t *Transport) Proxy() bool { return false }

// Close 关闭传输层
//
// 已建立的会话由各自的连接关闭。
func (t *Transport) Close() error {
	t.closed.Store(true)
	return nil
}
