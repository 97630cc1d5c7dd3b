package quic

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/quic-go/quic-go"

	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
)

// ErrListenerClosed 监听器已关闭
var ErrListenerClosed = errors.New("quic listener closed")

type listener struct {
	ql    *quic.Listener
	sock  *quic.Transport
	t     *Transport
	laddr multiaddr.Multiaddr

	closeOnce sync.Once
}

var _ pkgif.Listener = (*listener)(nil)

// Accept 返回下一个身份已验证的入站连接
func (l *listener) Accept() (pkgif.CapableConn, error) {
	for {
		qc, err := l.ql.Accept(context.Background())
		if err != nil {
			if errors.Is(err, quic.ErrServerClosed) {
				return nil, ErrListenerClosed
			}
			return nil, err
		}
		c, err := newConn(qc, l.t)
		if err != nil {
			l.t.logger.Debug("reject inbound quic connection", "raddr", qc.RemoteAddr(), "error", err)
			_ = qc.CloseWithError(closeMismatch, err.Error())
			continue
		}
		return c, nil
	}
}

func (l *listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.t.removeListener(l)
		err = errors.Join(l.ql.Close(), l.sock.Close())
	})
	return err
}

func (l *listener) Addr() net.Addr                 { return l.ql.Addr() }
func (l *listener) Multiaddr() multiaddr.Multiaddr { return l.laddr }
