package quic

import (
	"github.com/quic-go/quic-go"

	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
)

// 流错误码
const (
	streamReset quic.StreamErrorCode = 0
)

// stream 将 *quic.Stream 适配为 MuxedStream
type stream struct {
	*quic.Stream
}

var _ pkgif.MuxedStream = (*stream)(nil)

// Close 关闭写方向并停止读取
func (s *stream) Close() error {
	s.Stream.CancelRead(streamReset)
	return s.Stream.Close()
}

// CloseWrite QUIC 流的 Close 语义即半关闭写方向
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
