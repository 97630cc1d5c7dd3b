package client

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-ucnode/internal/core/relay/pb"
)

var (
	// ErrTransportClosed 传输已关闭
	ErrTransportClosed = errors.New("relay: transport closed")

	// ErrInvalidCircuitAddr 不是合法的电路地址
	ErrInvalidCircuitAddr = errors.New("relay: invalid circuit address")

	// ErrNoListener 没有 /p2p-circuit 监听器
	ErrNoListener = errors.New("relay: not listening for circuits")

	// ErrUnexpectedMessage 收到的消息类型不符
	ErrUnexpectedMessage = errors.New("relay: unexpected message")
)

// StatusError 中继返回的非 OK 状态
type StatusError struct {
	Op     string
	Status pb.Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("relay: %s: %s", e.Op, e.Status)
}
