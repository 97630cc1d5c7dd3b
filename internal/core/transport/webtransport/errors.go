package webtransport

import "errors"

var (
	// ErrTransportClosed 传输层已关闭
	ErrTransportClosed = errors.New("webtransport transport closed")

	// ErrListenUnsupported 本传输只支持拨号
	ErrListenUnsupported = errors.New("webtransport: listening is not supported")

	// ErrCertHashMismatch 服务端证书与地址中的 certhash 不符
	ErrCertHashMismatch = errors.New("webtransport: certificate hash mismatch")

	// ErrUnsupportedHash certhash 使用了不支持的哈希算法
	ErrUnsupportedHash = errors.New("webtransport: unsupported certhash algorithm")

	// ErrCertValidity 自签名证书有效期过长
	ErrCertValidity = errors.New("webtransport: certificate validity exceeds 14 days")
)
