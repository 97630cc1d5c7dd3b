package ucnode

import (
	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
)

// ChatTopic 节点订阅的共享主题
const ChatTopic = config.DefaultTopic

// 默认引导节点
const (
	WebRTCBootstrapNode       = config.WebRTCBootstrapNode
	WebTransportBootstrapNode = config.WebTransportBootstrapNode
)

// CircuitRelayCode 地址中电路中继段的协议码
const CircuitRelayCode = multiaddr.P_CIRCUIT
