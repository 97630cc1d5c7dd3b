package webrtc

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pion/datachannel"
	"github.com/pion/webrtc/v4"
	"go.uber.org/multierr"

	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
)

const (
	// maxWriteChunk 单条数据通道消息的写入上限
	maxWriteChunk = 16 << 10
	// maxReadMessage 可接收的最大数据通道消息
	maxReadMessage = 256 << 10
	// incomingBuffer 读协程与 Read 之间的消息缓冲
	incomingBuffer = 16
)

// dcConn 将分离出的数据通道适配为字节流 net.Conn
//
// 读协程持续接收消息，Read 按字节流消费；写入按 maxWriteChunk 分片。
// 关闭时同时关闭数据通道与 PeerConnection。
type dcConn struct {
	rwc datachannel.ReadWriteCloser
	pc  *webrtc.PeerConnection

	laddr multiaddr.Multiaddr
	raddr multiaddr.Multiaddr

	incoming chan []byte
	readErr  error

	readMu       sync.Mutex
	pending      []byte
	readDeadline *deadline

	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

var _ net.Conn = (*dcConn)(nil)

func newDCConn(rwc datachannel.ReadWriteCloser, pc *webrtc.PeerConnection, laddr, raddr multiaddr.Multiaddr) *dcConn {
	c := &dcConn{
		rwc:          rwc,
		pc:           pc,
		laddr:        laddr,
		raddr:        raddr,
		incoming:     make(chan []byte, incomingBuffer),
		readDeadline: newDeadline(),
		closed:       make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *dcConn) readLoop() {
	buf := make([]byte, maxReadMessage)
	for {
		n, err := c.rwc.Read(buf)
		if err != nil {
			// incoming 关闭前写入，Read 在通道关闭后才读取 readErr
			c.readErr = err
			close(c.incoming)
			return
		}
		if n == 0 {
			continue
		}
		msg := make([]byte, n)
		copy(msg, buf[:n])
		select {
		case c.incoming <- msg:
		case <-c.closed:
			return
		}
	}
}

func (c *dcConn) Read(b []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if len(c.pending) == 0 {
		select {
		case <-c.closed:
			return 0, net.ErrClosed
		default:
		}
		select {
		case msg, ok := <-c.incoming:
			if !ok {
				if c.readErr == nil || errors.Is(c.readErr, io.EOF) {
					return 0, io.EOF
				}
				return 0, c.readErr
			}
			c.pending = msg
		case <-c.readDeadline.wait():
			return 0, os.ErrDeadlineExceeded
		case <-c.closed:
			return 0, net.ErrClosed
		}
	}
	n := copy(b, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *dcConn) Write(b []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.closed:
		return 0, net.ErrClosed
	default:
	}
	var written int
	for len(b) > 0 {
		chunk := b
		if len(chunk) > maxWriteChunk {
			chunk = chunk[:maxWriteChunk]
		}
		n, err := c.rwc.Write(chunk)
		written += n
		if err != nil {
			return written, err
		}
		b = b[len(chunk):]
	}
	return written, nil
}

func (c *dcConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.closeErr = multierr.Combine(c.rwc.Close(), c.pc.Close())
	})
	return c.closeErr
}

func (c *dcConn) LocalAddr() net.Addr  { return &netAddr{c.laddr} }
func (c *dcConn) RemoteAddr() net.Addr { return &netAddr{c.raddr} }

func (c *dcConn) SetDeadline(t time.Time) error {
	return c.SetReadDeadline(t)
}

func (c *dcConn) SetReadDeadline(t time.Time) error {
	c.readDeadline.set(t)
	return nil
}

// SetWriteDeadline 数据通道写入只进入 SCTP 发送缓冲，不会长时间阻塞
func (c *dcConn) SetWriteDeadline(time.Time) error {
	return nil
}

// ============================================================================
//                              deadline
// ============================================================================

// deadline 可重置的截止时间，到期时关闭 wait 返回的通道
type deadline struct {
	mu     sync.Mutex
	timer  *time.Timer
	cancel chan struct{}
}

func newDeadline() *deadline {
	return &deadline{cancel: make(chan struct{})}
}

// set 设置截止时间；零值清除，过去的时间立即到期
func (d *deadline) set(t time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil && !d.timer.Stop() {
		<-d.cancel
	}
	d.timer = nil

	expired := isClosed(d.cancel)
	if t.IsZero() {
		if expired {
			d.cancel = make(chan struct{})
		}
		return
	}
	if dur := time.Until(t); dur > 0 {
		if expired {
			d.cancel = make(chan struct{})
		}
		cancel := d.cancel
		d.timer = time.AfterFunc(dur, func() { close(cancel) })
		return
	}
	if !expired {
		close(d.cancel)
	}
}

func (d *deadline) wait() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancel
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// netAddr 以多地址字符串表示的 net.Addr
type netAddr struct {
	m multiaddr.Multiaddr
}

func (a *netAddr) Network() string { return "webrtc" }

func (a *netAddr) String() string {
	if a.m == nil {
		return ""
	}
	return a.m.String()
}
