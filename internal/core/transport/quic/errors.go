package quic

import "errors"

var (
	// ErrTransportClosed 传输层已关闭
	ErrTransportClosed = errors.New("quic transport closed")

	// ErrNoCertificate 对端未提供证书
	ErrNoCertificate = errors.New("peer presented no certificate")

	// ErrMissingExtension 证书缺少节点身份扩展
	ErrMissingExtension = errors.New("certificate missing identity extension")

	// ErrInvalidCertSignature 身份扩展中的签名无效
	ErrInvalidCertSignature = errors.New("invalid identity signature in certificate")

	// ErrPeerIDMismatch 握手得到的对端身份与期望不符
	ErrPeerIDMismatch = errors.New("peer id mismatch")
)
