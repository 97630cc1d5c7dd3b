package swarm

import (
	"context"
	"fmt"
	"sync"
	"time"

	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// Conn Swarm 连接封装
type Conn struct {
	pkgif.CapableConn

	id    uint64
	swarm *Swarm
	stat  pkgif.ConnStat

	mu         sync.Mutex
	streams    map[*Stream]struct{}
	nextStream uint64
	closed     bool
	closeErr   error
}

var _ pkgif.Conn = (*Conn)(nil)

func newConn(s *Swarm, cc pkgif.CapableConn, id uint64, dir types.Direction) *Conn {
	return &Conn{
		CapableConn: cc,
		id:          id,
		swarm:       s,
		stat: pkgif.ConnStat{
			Direction: dir,
			Opened:    time.Now(),
			Transient: cc.RemoteMultiaddr() != nil && cc.RemoteMultiaddr().HasProtocol(multiaddr.P_CIRCUIT),
		},
		streams: make(map[*Stream]struct{}),
	}
}

// ID 返回连接标识
func (c *Conn) ID() string {
	return fmt.Sprintf("conn-%d", c.id)
}

// Stat 返回连接元数据
func (c *Conn) Stat() pkgif.ConnStat { return c.stat }

// NewStream 在连接上打开新流
func (c *Conn) NewStream(ctx context.Context) (pkgif.Stream, error) {
	ms, err := c.CapableConn.OpenStream(ctx)
	if err != nil {
		return nil, err
	}
	return c.addStream(ms, types.DirOutbound)
}

func (c *Conn) addStream(ms pkgif.MuxedStream, dir types.Direction) (*Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		_ = ms.Reset()
		return nil, ErrSwarmClosed
	}
	c.nextStream++
	s := &Stream{MuxedStream: ms, id: c.nextStream, conn: c, dir: dir}
	c.streams[s] = struct{}{}
	return s, nil
}

func (c *Conn) removeStream(s *Stream) {
	c.mu.Lock()
	delete(c.streams, s)
	c.mu.Unlock()
}

// GetStreams 返回连接上的全部流
func (c *Conn) GetStreams() []pkgif.Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]pkgif.Stream, 0, len(c.streams))
	for s := range c.streams {
		out = append(out, s)
	}
	return out
}

// IsClosed 连接是否已关闭
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close 关闭连接与其上的全部流
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return c.closeErr
	}
	c.closed = true
	streams := c.streams
	c.streams = nil
	c.mu.Unlock()

	for s := range streams {
		_ = s.MuxedStream.Reset()
	}
	err := c.CapableConn.Close()
	c.mu.Lock()
	c.closeErr = err
	c.mu.Unlock()
	c.swarm.removeConn(c)
	return err
}

// acceptStreams 接受入站流直到连接关闭
func (c *Conn) acceptStreams() {
	defer c.swarm.wg.Done()
	for {
		ms, err := c.CapableConn.AcceptStream()
		if err != nil {
			_ = c.Close()
			return
		}
		s, err := c.addStream(ms, types.DirInbound)
		if err != nil {
			return
		}
		h := c.swarm.streamHandler()
		if h == nil {
			_ = s.Reset()
			continue
		}
		go h(s)
	}
}
