package websocket

import (
	"net"
	"net/http"
	"sync"

	ws "github.com/gorilla/websocket"
)

// listener 运行 HTTP 服务，把升级成功的 WebSocket 连接作为 net.Conn 交付
type listener struct {
	nl     net.Listener
	server *http.Server

	upgrader ws.Upgrader
	incoming chan net.Conn

	closeOnce sync.Once
	closed    chan struct{}
}

func newListener(nl net.Listener) *listener {
	l := &listener{
		nl: nl,
		upgrader: ws.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// 浏览器节点来自任意源
			CheckOrigin: func(*http.Request) bool { return true },
		},
		incoming: make(chan net.Conn),
		closed:   make(chan struct{}),
	}
	l.server = &http.Server{Handler: l}
	go func() { _ = l.server.Serve(nl) }()
	return l
}

func (l *listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	select {
	case l.incoming <- newConn(c):
	case <-l.closed:
		c.Close()
	case <-r.Context().Done():
		c.Close()
	}
}

// Accept 实现 upgradelistener.RawListener
func (l *listener) Accept() (net.Conn, error) {
	select {
	case c := <-l.incoming:
		return c, nil
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		err = l.server.Close()
	})
	return err
}

func (l *listener) Addr() net.Addr { return l.nl.Addr() }
