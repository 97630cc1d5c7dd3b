package mocks

import (
	"context"
	"sync"

	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// MockSubscription 模拟 TopicSubscription 接口实现
//
// 默认从 Messages 依次返回消息，取完后阻塞到 ctx 结束。
type MockSubscription struct {
	TopicValue string
	Messages   []*types.GossipMessage

	// 可覆盖的方法
	NextFunc func(ctx context.Context) (*types.GossipMessage, error)

	mu          sync.Mutex
	next        int
	cancelCalls int
}

var _ pkgif.TopicSubscription = (*MockSubscription)(nil)

// NewMockSubscription 创建预置消息的 MockSubscription
func NewMockSubscription(topic string, msgs ...*types.GossipMessage) *MockSubscription {
	return &MockSubscription{TopicValue: topic, Messages: msgs}
}

// Topic 返回主题
func (m *MockSubscription) Topic() string {
	return m.TopicValue
}

// Next 返回下一条消息
func (m *MockSubscription) Next(ctx context.Context) (*types.GossipMessage, error) {
	if m.NextFunc != nil {
		return m.NextFunc(ctx)
	}
	m.mu.Lock()
	if m.next < len(m.Messages) {
		msg := m.Messages[m.next]
		m.next++
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

// Cancel 取消订阅
func (m *MockSubscription) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelCalls++
}

// CancelCalls 返回 Cancel 调用次数
func (m *MockSubscription) CancelCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelCalls
}
