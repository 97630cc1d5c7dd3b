package upgrader

import (
	"fmt"
	"io"

	mss "github.com/multiformats/go-multistream"
)

// negotiate 在 rw 上用 multistream-select 协商单个协议
//
// 服务端使用 MultistreamMuxer.Negotiate，客户端使用 SelectProtoOrFail。
func negotiate(rw io.ReadWriteCloser, proto string, isServer bool) error {
	if isServer {
		muxer := mss.NewMultistreamMuxer[string]()
		muxer.AddHandler(proto, nil)
		selected, _, err := muxer.Negotiate(rw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNegotiationFailed, err)
		}
		if selected != proto {
			return fmt.Errorf("%w: got %s", ErrNegotiationFailed, selected)
		}
		return nil
	}
	if err := mss.SelectProtoOrFail(proto, rw); err != nil {
		return fmt.Errorf("%w: %v", ErrNegotiationFailed, err)
	}
	return nil
}
