package yamux

import (
	"context"
	"fmt"
	"net"

	"github.com/hashicorp/yamux"

	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/protocolids"
)

// ID yamux 协议标识
const ID = protocolids.Yamux

// Conn 封装 yamux.Session
type Conn struct {
	session *yamux.Session
}

var _ pkgif.MuxedConn = (*Conn)(nil)

// NewConn 在 conn 上建立 yamux 会话
func NewConn(conn net.Conn, isServer bool, cfg *yamux.Config) (*Conn, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var (
		s   *yamux.Session
		err error
	)
	if isServer {
		s, err = yamux.Server(conn, cfg)
	} else {
		s, err = yamux.Client(conn, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("yamux session: %w", err)
	}
	return &Conn{session: s}, nil
}

// OpenStream 打开新流
//
// yamux 的 OpenStream 不支持 context，ctx 取消时孤立的流会被关闭。
func (c *Conn) OpenStream(ctx context.Context) (pkgif.MuxedStream, error) {
	type result struct {
		s   *yamux.Stream
		err error
	}
	ch := make(chan result, 1)
	go func() {
		s, err := c.session.OpenStream()
		ch <- result{s, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.s != nil {
				_ = r.s.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("open stream: %w", r.err)
		}
		return &Stream{Stream: r.s}, nil
	}
}

// AcceptStream 接受对端打开的流
func (c *Conn) AcceptStream() (pkgif.MuxedStream, error) {
	s, err := c.session.AcceptStream()
	if err != nil {
		return nil, err
	}
	return &Stream{Stream: s}, nil
}

// Close 关闭会话
func (c *Conn) Close() error { return c.session.Close() }

// IsClosed 会话是否已关闭
func (c *Conn) IsClosed() bool { return c.session.IsClosed() }

// NumStreams 当前流数量
func (c *Conn) NumStreams() int { return c.session.NumStreams() }

// Stream 封装 yamux.Stream
type Stream struct {
	*yamux.Stream
}

var _ pkgif.MuxedStream = (*Stream)(nil)

// CloseWrite 半关闭写方向（发送 FIN）
func (s *Stream) CloseWrite() error { return s.Stream.Close() }

// CloseRead 停止读取
//
// yamux 没有读方向的关闭帧，这里以过去的读截止时间阻止后续读取。
func (s *Stream) CloseRead() error {
	return s.Stream.SetReadDeadline(pastDeadline)
}

// Reset 异常终止流
func (s *Stream) Reset() error {
	_ = s.Stream.SetDeadline(pastDeadline)
	return s.Stream.Close()
}
