package upgrader

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/dep2p/go-ucnode/internal/core/muxer/yamux"
	"github.com/dep2p/go-ucnode/internal/core/security/noise"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// DefaultHandshakeTimeout 默认升级超时
const DefaultHandshakeTimeout = 10 * time.Second

var _ pkgif.Upgrader = (*Upgrader)(nil)

// Upgrader 连接升级器
type Upgrader struct {
	security *noise.Transport
	timeout  time.Duration
	logger   *slog.Logger
}

// New 创建连接升级器
func New(security *noise.Transport, timeout time.Duration, logger *slog.Logger) *Upgrader {
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Upgrader{security: security, timeout: timeout, logger: logger}
}

// Upgrade 升级连接
//
// 出站且 peer 为空时接受握手得到的任意身份。失败时关闭 conn。
func (u *Upgrader) Upgrade(
	ctx context.Context,
	t pkgif.Transport,
	conn net.Conn,
	dir types.Direction,
	peer types.PeerID,
	laddr, raddr multiaddr.Multiaddr,
) (pkgif.CapableConn, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	c, err := u.upgrade(ctx, t, conn, dir, peer, laddr, raddr)
	if err != nil {
		conn.Close()
		u.logger.Debug("connection upgrade failed",
			"direction", dir.String(),
			"raddr", raddr,
			"error", err)
		return nil, err
	}
	u.logger.Debug("connection upgraded",
		"direction", dir.String(),
		"peer", log.TruncateID(c.RemotePeer().String(), 12),
		"raddr", raddr)
	return c, nil
}

func (u *Upgrader) upgrade(
	ctx context.Context,
	t pkgif.Transport,
	conn net.Conn,
	dir types.Direction,
	peer types.PeerID,
	laddr, raddr multiaddr.Multiaddr,
) (pkgif.CapableConn, error) {
	isServer := dir == types.DirInbound

	if err := u.withDeadline(ctx, conn, func() error {
		return negotiate(conn, string(noise.ID), isServer)
	}); err != nil {
		return nil, fmt.Errorf("security negotiation: %w", err)
	}

	var (
		sc  *noise.Conn
		err error
	)
	if isServer {
		sc, err = u.security.SecureInbound(ctx, conn, peer)
	} else {
		sc, err = u.security.SecureOutbound(ctx, conn, peer)
	}
	if err != nil {
		return nil, err
	}

	if err := u.withDeadline(ctx, sc, func() error {
		return negotiate(sc, string(yamux.ID), isServer)
	}); err != nil {
		return nil, fmt.Errorf("muxer negotiation: %w", err)
	}

	mc, err := yamux.NewConn(sc, isServer, nil)
	if err != nil {
		return nil, err
	}

	return &upgradedConn{
		MuxedConn:  mc,
		transport:  t,
		localPeer:  sc.LocalPeer(),
		remotePeer: sc.RemotePeer(),
		remotePub:  sc.RemotePublicKey(),
		laddr:      laddr,
		raddr:      raddr,
	}, nil
}

func (u *Upgrader) withDeadline(ctx context.Context, conn net.Conn, fn func() error) error {
	if d, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(d); err != nil {
			return err
		}
		defer conn.SetDeadline(time.Time{})
	}
	err := fn()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
