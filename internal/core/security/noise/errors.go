package noise

import "errors"

var (
	// ErrPeerIDMismatch 握手得到的对端身份与期望不符
	ErrPeerIDMismatch = errors.New("peer id mismatch")

	// ErrInvalidSignature 静态密钥未被身份密钥签名
	ErrInvalidSignature = errors.New("invalid signature: remote static key not bound to identity key")

	// ErrInvalidPayload 握手 payload 格式错误
	ErrInvalidPayload = errors.New("invalid handshake payload")
)
