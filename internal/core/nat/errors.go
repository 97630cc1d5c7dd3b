package nat

import "errors"

// Sentinel errors
var (
	// ErrAlreadyStarted NAT 服务已经启动
	ErrAlreadyStarted = errors.New("nat: service already started")

	// ErrNotStarted NAT 服务未启动
	ErrNotStarted = errors.New("nat: service not started")

	// ErrNoPeers 没有可用的节点进行探测
	ErrNoPeers = errors.New("nat: no peers available for probe")

	// ErrNoAddresses 没有可用的地址
	ErrNoAddresses = errors.New("nat: no addresses available")

	// ErrBadMessage AutoNAT 消息格式错误
	ErrBadMessage = errors.New("nat: bad autonat message")
)

// ResponseError 对端返回的非 OK 状态
type ResponseError struct {
	Status ResponseStatus
	Text   string
}

func (e *ResponseError) Error() string {
	if e.Text != "" {
		return "nat: autonat " + e.Status.String() + ": " + e.Text
	}
	return "nat: autonat " + e.Status.String()
}
