package pubsub

import (
	"context"
	"sync"

	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// subscriptionBufferSize 单个订阅的消息缓冲
const subscriptionBufferSize = 32

// subscription 实现 TopicSubscription
type subscription struct {
	topic string
	ps    *PubSub
	msgCh chan *types.GossipMessage

	once sync.Once
	done chan struct{}
}

var _ pkgif.TopicSubscription = (*subscription)(nil)

func newSubscription(ps *PubSub, topic string) *subscription {
	return &subscription{
		topic: topic,
		ps:    ps,
		msgCh: make(chan *types.GossipMessage, subscriptionBufferSize),
		done:  make(chan struct{}),
	}
}

// Topic 返回主题名
func (s *subscription) Topic() string {
	return s.topic
}

// Next 获取下一条消息
func (s *subscription) Next(ctx context.Context) (*types.GossipMessage, error) {
	select {
	case msg := <-s.msgCh:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrSubscriptionCancelled
	}
}

// Cancel 取消订阅
//
// 可重复调用。主题的最后一个订阅取消后向对端通告退订。
func (s *subscription) Cancel() {
	s.once.Do(func() {
		close(s.done)
		s.ps.removeSubscription(s)
	})
}

// cancelled 由 PubSub.Close 调用，不再回调 removeSubscription
func (s *subscription) cancelled() {
	s.once.Do(func() { close(s.done) })
}

// push 投递消息，缓冲区满时丢弃
func (s *subscription) push(msg *types.GossipMessage) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.msgCh <- msg:
		return true
	default:
		return false
	}
}
