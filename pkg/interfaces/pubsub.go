package interfaces

import (
	"context"

	"github.com/dep2p/go-ucnode/pkg/types"
)

// GossipChannel 主题消息传播
type GossipChannel interface {
	// Subscribe 订阅主题
	Subscribe(topic string) (TopicSubscription, error)

	// Publish 向主题发布消息
	Publish(ctx context.Context, topic string, data []byte) error

	// GetTopics 返回本地已订阅主题
	GetTopics() []string

	// ListPeers 返回订阅了主题的对端
	ListPeers(topic string) []types.PeerID

	// Close 关闭并取消全部订阅
	Close() error
}

// TopicSubscription 主题订阅
type TopicSubscription interface {
	// Topic 返回主题名
	Topic() string

	// Next 阻塞等待下一条消息
	Next(ctx context.Context) (*types.GossipMessage, error)

	// Cancel 取消订阅
	Cancel()
}
