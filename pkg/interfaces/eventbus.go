package interfaces

// EventBus 进程内按类型分发的事件总线
//
// 同一发射器的事件按顺序到达每个订阅者。订阅缓冲满时 Emit 阻塞，事件不会丢失。
type EventBus interface {
	// Subscribe 传入事件类型的指针，如 new(types.EvtPeerConnectedness)
	Subscribe(eventType any, opts ...SubscriptionOpt) (Subscription, error)

	Emitter(eventType any, opts ...EmitterOpt) (Emitter, error)

	// EventTypes 返回当前仍有订阅者或发射器的事件类型
	EventTypes() []any
}

// Subscription 一个订阅；Close 后 Out 被关闭
type Subscription interface {
	Out() <-chan any
	Close() error
}

// Emitter 单一事件类型的发射端
type Emitter interface {
	Emit(event any) error
	Close() error
}

type (
	SubscriptionOpt func(*SubscriptionSettings)
	EmitterOpt      func(*EmitterSettings)
)

// SubscriptionSettings 由总线实现读取
type SubscriptionSettings struct {
	Buffer int
}

// EmitterSettings 由总线实现读取
type EmitterSettings struct {
	// Stateful 新订阅者先收到最近一次发射的事件
	Stateful bool
}

// BufSize 订阅通道容量
func BufSize(size int) SubscriptionOpt {
	return func(s *SubscriptionSettings) { s.Buffer = size }
}

// Stateful 让发射器保留最近一次事件，供之后的订阅者补收
func Stateful() EmitterOpt {
	return func(s *EmitterSettings) { s.Stateful = true }
}
