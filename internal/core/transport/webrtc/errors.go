package webrtc

import "errors"

var (
	// ErrTransportClosed 传输已关闭
	ErrTransportClosed = errors.New("webrtc: transport closed")
	// ErrInvalidAddr 不是 .../p2p-circuit/webrtc 地址
	ErrInvalidAddr = errors.New("webrtc: invalid address")
	// ErrNoListener 未在 /webrtc 上监听
	ErrNoListener = errors.New("webrtc: not listening")
	// ErrUnexpectedSignal 信令消息类型不符合当前阶段
	ErrUnexpectedSignal = errors.New("webrtc: unexpected signaling message")
	// ErrConnectionFailed ICE 或 DTLS 建立失败
	ErrConnectionFailed = errors.New("webrtc: peer connection failed")
)
