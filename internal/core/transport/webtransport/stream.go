package webtransport

import (
	"github.com/quic-go/webtransport-go"

	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
)

// 流错误码
const (
	streamReset webtransport.StreamErrorCode = 0
)

// stream 将 WebTransport 流适配为 MuxedStream
type stream struct {
	*webtransport.Stream
}

var _ pkgif.MuxedStream = (*stream)(nil)

// Close 关闭写方向并停止读取
func (s *stream) Close() error {
	s.Stream.CancelRead(streamReset)
	return s.Stream.Close()
}

// CloseWrite 流的 Close 语义即半关闭写方向
func (s *stream) CloseWrite() error {
	return s.Stream.Close()
}

func (s *stream) CloseRead() error {
	s.Stream.CancelRead(streamReset)
	return nil
}

func (s *stream) Reset() error {
	s.Stream.CancelRead(streamReset)
	s.Stream.CancelWrite(streamReset)
	return nil
}
