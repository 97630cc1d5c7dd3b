package protocolids

import (
	"strings"

	"github.com/dep2p/go-ucnode/pkg/types"
)

// ----------------------------------------------------------------------------
// 连接升级
// ----------------------------------------------------------------------------

// Noise Noise XX 安全通道
const Noise types.ProtocolID = "/noise"

// Yamux yamux 流复用
const Yamux types.ProtocolID = "/yamux/1.0.0"

// ----------------------------------------------------------------------------
// 基础协议
// ----------------------------------------------------------------------------

// Identify 身份识别协议，用于交换监听地址、协议列表与观测地址
const Identify types.ProtocolID = "/ipfs/id/1.0.0"

// IdentifyPush 身份推送协议，本地信息变化时主动推送
const IdentifyPush types.ProtocolID = "/ipfs/id/push/1.0.0"

// Ping 存活检测与延迟测量
const Ping types.ProtocolID = "/ipfs/ping/1.0.0"

// ----------------------------------------------------------------------------
// NAT 与中继
// ----------------------------------------------------------------------------

// AutoNAT 可达性探测（对端回拨）
const AutoNAT types.ProtocolID = "/libp2p/autonat/1.0.0"

// RelayHop 中继服务端协议（预约与建立电路）
const RelayHop types.ProtocolID = "/libp2p/circuit/relay/0.2.0/hop"

// RelayStop 中继目标端协议（接收电路）
const RelayStop types.ProtocolID = "/libp2p/circuit/relay/0.2.0/stop"

// WebRTCSignaling 经中继交换 SDP 的信令协议
const WebRTCSignaling types.ProtocolID = "/webrtc-signaling/0.0.1"

// ----------------------------------------------------------------------------
// 发现与传播
// ----------------------------------------------------------------------------

// GossipSub 主题消息 RPC
const GossipSub types.ProtocolID = "/meshsub/1.1.0"

// FloodSub 兼容的旧版主题消息 RPC
const FloodSub types.ProtocolID = "/floodsub/1.0.0"

// DefaultDHTPrefix 默认 DHT 协议前缀
const DefaultDHTPrefix = "/ipfs"

// DHT 返回指定前缀下的 Kademlia 协议 ID
func DHT(prefix string) types.ProtocolID {
	if prefix == "" {
		prefix = DefaultDHTPrefix
	}
	return types.ProtocolID(strings.TrimRight(prefix, "/") + "/kad/1.0.0")
}

// All 返回固定协议 ID 列表（不含 DHT）
func All() []types.ProtocolID {
	return []types.ProtocolID{
		Noise, Yamux, Identify, IdentifyPush, Ping,
		AutoNAT, RelayHop, RelayStop, WebRTCSignaling,
		GossipSub, FloodSub,
	}
}
