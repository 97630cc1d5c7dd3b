package pubsub

import "errors"

// 错误定义
var (
	// ErrNotStarted 服务未启动
	ErrNotStarted = errors.New("pubsub: service not started")

	// ErrAlreadyStarted 服务已启动
	ErrAlreadyStarted = errors.New("pubsub: service already started")

	// ErrClosed 服务已关闭
	ErrClosed = errors.New("pubsub: closed")

	// ErrInvalidTopic 主题名为空
	ErrInvalidTopic = errors.New("pubsub: invalid topic")

	// ErrSubscriptionCancelled 订阅已取消
	ErrSubscriptionCancelled = errors.New("pubsub: subscription cancelled")

	// ErrMessageTooLarge 消息过大
	ErrMessageTooLarge = errors.New("pubsub: message too large")

	// ErrDuplicateMessage 重复消息
	ErrDuplicateMessage = errors.New("pubsub: duplicate message")

	// ErrNoPeers 主题没有订阅对端
	ErrNoPeers = errors.New("pubsub: no peers subscribed to topic")

	// ErrInvalidSignature 签名缺失或无效
	ErrInvalidSignature = errors.New("pubsub: invalid signature")

	// ErrInvalidSeqno 序列号超过 8 字节
	ErrInvalidSeqno = errors.New("pubsub: invalid seqno")

	// ErrUnexpectedSignature strict-no-sign 策略下收到签名消息
	ErrUnexpectedSignature = errors.New("pubsub: unexpected signature")
)
