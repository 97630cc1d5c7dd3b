// Package upgradelistener 将原始连接监听器包装为升级后的 Listener
//
// 接受循环在后台运行，每个入站连接在独立 goroutine 中升级，
// 同时进行中的升级数受信号量限制，慢速握手不会阻塞其他连接。
package upgradelistener

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/sync/semaphore"

	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// ErrClosed 监听器已关闭
var ErrClosed = errors.New("listener closed")

// MaxInflightUpgrades 同时进行的入站升级上限
const MaxInflightUpgrades = 64

// RawListener 原始连接来源
type RawListener interface {
	Accept() (net.Conn, error)
	Close() error
	Addr() net.Addr
}

// Listener 升级后的监听器
type Listener struct {
	raw       RawListener
	laddr     multiaddr.Multiaddr
	upgrader  pkgif.Upgrader
	transport pkgif.Transport
	logger    *slog.Logger

	// remoteAddr 将原始连接的远端地址转为多地址
	remoteAddr func(net.Conn) (multiaddr.Multiaddr, error)

	ctx    context.Context
	cancel context.CancelFunc
	sem    *semaphore.Weighted
	conns  chan pkgif.CapableConn
	wg     sync.WaitGroup

	errOnce sync.Once
	err     error
}

var _ pkgif.Listener = (*Listener)(nil)

// New 创建升级监听器并启动接受循环
func New(
	raw RawListener,
	laddr multiaddr.Multiaddr,
	u pkgif.Upgrader,
	t pkgif.Transport,
	remoteAddr func(net.Conn) (multiaddr.Multiaddr, error),
	logger *slog.Logger,
) *Listener {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{
		raw:        raw,
		laddr:      laddr,
		upgrader:   u,
		transport:  t,
		logger:     logger,
		remoteAddr: remoteAddr,
		ctx:        ctx,
		cancel:     cancel,
		sem:        semaphore.NewWeighted(MaxInflightUpgrades),
		conns:      make(chan pkgif.CapableConn),
	}
	l.wg.Add(1)
	go l.acceptLoop()
	return l
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()
	for {
		if err := l.sem.Acquire(l.ctx, 1); err != nil {
			return
		}
		c, err := l.raw.Accept()
		if err != nil {
			l.sem.Release(1)
			l.fail(err)
			return
		}
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			defer l.sem.Release(1)
			l.handle(c)
		}()
	}
}

func (l *Listener) handle(c net.Conn) {
	raddr, err := l.remoteAddr(c)
	if err != nil {
		l.logger.Debug("drop inbound connection", "error", err)
		c.Close()
		return
	}
	uc, err := l.upgrader.Upgrade(l.ctx, l.transport, c, types.DirInbound, "", l.laddr, raddr)
	if err != nil {
		l.logger.Debug("inbound upgrade failed", "raddr", raddr, "error", err)
		return
	}
	select {
	case l.conns <- uc:
	case <-l.ctx.Done():
		uc.Close()
	}
}

func (l *Listener) fail(err error) {
	l.errOnce.Do(func() {
		l.err = err
		l.cancel()
	})
}

// Accept 返回下一个已升级的入站连接
func (l *Listener) Accept() (pkgif.CapableConn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.ctx.Done():
		if l.err != nil && !errors.Is(l.err, net.ErrClosed) {
			return nil, l.err
		}
		return nil, ErrClosed
	}
}

// Close 关闭监听器并等待后台 goroutine 退出
func (l *Listener) Close() error {
	l.fail(ErrClosed)
	err := l.raw.Close()
	l.wg.Wait()
	return err
}

// Addr 返回网络地址
func (l *Listener) Addr() net.Addr { return l.raw.Addr() }

// Multiaddr 返回监听多地址
func (l *Listener) Multiaddr() multiaddr.Multiaddr { return l.laddr }
