package eventbus

import (
	"reflect"
	"sync"
)

// Subscription 订阅
type Subscription struct {
	bus       *Bus
	typ       reflect.Type
	out       chan interface{}
	done      chan struct{}
	closeOnce sync.Once
}

// Out 返回事件通道，Close 之后通道被关闭
func (s *Subscription) Out() <-chan interface{} {
	return s.out
}

// deliver 调用方持有 node.lk
func (s *Subscription) deliver(event interface{}) {
	select {
	case s.out <- event:
	case <-s.done:
	}
}

// Close 取消订阅
//
// 先关闭 done 解除正在阻塞的发射方，再从总线移除，最后关闭 out。
// 移除时需要 node.lk，此后不会再有发射方写入 out。
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.bus.removeSub(s)
		close(s.out)
	})
	return nil
}
