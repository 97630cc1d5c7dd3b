package swarm

import (
	"fmt"
	"sync"

	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// Stream Swarm 流封装
//
// 读写字节按协议计入带宽指标。
type Stream struct {
	pkgif.MuxedStream

	id   uint64
	conn *Conn
	dir  types.Direction

	mu       sync.RWMutex
	protocol types.ProtocolID

	closeOnce sync.Once
}

var _ pkgif.Stream = (*Stream)(nil)

// ID 返回流标识
func (s *Stream) ID() string {
	return fmt.Sprintf("%s-%d", s.conn.ID(), s.id)
}

// Protocol 返回协议 ID
func (s *Stream) Protocol() types.ProtocolID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.protocol
}

// SetProtocol 设置协议 ID（协议协商后由 Host 调用）
func (s *Stream) SetProtocol(p types.ProtocolID) {
	s.mu.Lock()
	s.protocol = p
	s.mu.Unlock()
}

// Conn 返回所属连接
func (s *Stream) Conn() pkgif.Conn { return s.conn }

// Direction 返回流方向
func (s *Stream) Direction() types.Direction { return s.dir }

func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.MuxedStream.Read(p)
	if n > 0 {
		if m := s.conn.swarm.metrics; m != nil {
			m.BytesReceived.WithLabelValues(s.protocolLabel()).Add(float64(n))
		}
	}
	return n, err
}

func (s *Stream) Write(p []byte) (int, error) {
	n, err := s.MuxedStream.Write(p)
	if n > 0 {
		if m := s.conn.swarm.metrics; m != nil {
			m.BytesSent.WithLabelValues(s.protocolLabel()).Add(float64(n))
		}
	}
	return n, err
}

// Close 关闭流并从连接中移除
func (s *Stream) Close() error {
	s.detach()
	return s.MuxedStream.Close()
}

// Reset 异常终止流并从连接中移除
func (s *Stream) Reset() error {
	s.detach()
	return s.MuxedStream.Reset()
}

func (s *Stream) detach() {
	s.closeOnce.Do(func() { s.conn.removeStream(s) })
}

func (s *Stream) protocolLabel() string {
	if p := s.Protocol(); p != "" {
		return string(p)
	}
	return "unnegotiated"
}
