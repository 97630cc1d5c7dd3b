package dht

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-ucnode/internal/util/pbwire"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// maxMessageSize 单条 kad 消息上限
const maxMessageSize = 4 << 20

// MessageType kad 消息类型
type MessageType int32

const (
	MessagePutValue     MessageType = 0
	MessageGetValue     MessageType = 1
	MessageAddProvider  MessageType = 2
	MessageGetProviders MessageType = 3
	MessageFindNode     MessageType = 4
	MessagePing         MessageType = 5
)

// String 返回类型名
func (t MessageType) String() string {
	switch t {
	case MessagePutValue:
		return "PUT_VALUE"
	case MessageGetValue:
		return "GET_VALUE"
	case MessageAddProvider:
		return "ADD_PROVIDER"
	case MessageGetProviders:
		return "GET_PROVIDERS"
	case MessageFindNode:
		return "FIND_NODE"
	case MessagePing:
		return "PING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int32(t))
	}
}

// ConnectionType 发送方与该节点的连接状态
type ConnectionType int32

const (
	NotConnected  ConnectionType = 0
	Connected     ConnectionType = 1
	CanConnect    ConnectionType = 2
	CannotConnect ConnectionType = 3
)

// PeerInfo 消息中的节点信息
type PeerInfo struct {
	ID         types.PeerID
	Addrs      []multiaddr.Multiaddr
	Connection ConnectionType
}

// Message kad 消息
//
//	message Message {
//	  MessageType type = 1;
//	  bytes key = 2;
//	  repeated Peer closerPeers = 8;
//	}
//
// record（3）与 providerPeers（9）不使用，解码时跳过。
type Message struct {
	Type        MessageType
	Key         []byte
	CloserPeers []PeerInfo
}

// Marshal 编码
func (m *Message) Marshal() []byte {
	b := pbwire.AppendVarint(nil, 1, uint64(m.Type))
	if len(m.Key) > 0 {
		b = pbwire.AppendBytes(b, 2, m.Key)
	}
	for i := range m.CloserPeers {
		b = pbwire.AppendBytes(b, 8, m.CloserPeers[i].marshal())
	}
	return b
}

func (p *PeerInfo) marshal() []byte {
	b := pbwire.AppendBytes(nil, 1, p.ID.Bytes())
	for _, a := range p.Addrs {
		b = pbwire.AppendBytes(b, 2, a.Bytes())
	}
	if p.Connection != NotConnected {
		b = pbwire.AppendVarint(b, 3, uint64(p.Connection))
	}
	return b
}

// Unmarshal 解码
//
// 节点 ID 或地址无效的条目被跳过。
func (m *Message) Unmarshal(b []byte) error {
	*m = Message{}
	return pbwire.Range(b, func(f pbwire.Field) error {
		switch {
		case f.Num == 1 && f.Type == protowire.VarintType:
			m.Type = MessageType(f.Varint)
		case f.Num == 2 && f.Type == protowire.BytesType:
			m.Key = pbwire.Copy(f.Bytes)
		case f.Num == 8 && f.Type == protowire.BytesType:
			p, err := unmarshalPeer(f.Bytes)
			if err != nil {
				return err
			}
			if p.ID != "" {
				m.CloserPeers = append(m.CloserPeers, p)
			}
		}
		return nil
	})
}

func unmarshalPeer(b []byte) (PeerInfo, error) {
	var p PeerInfo
	err := pbwire.Range(b, func(f pbwire.Field) error {
		switch {
		case f.Num == 1 && f.Type == protowire.BytesType:
			if id, err := types.PeerIDFromBytes(pbwire.Copy(f.Bytes)); err == nil {
				p.ID = id
			}
		case f.Num == 2 && f.Type == protowire.BytesType:
			if a, err := multiaddr.NewMultiaddrBytes(pbwire.Copy(f.Bytes)); err == nil {
				p.Addrs = append(p.Addrs, a)
			}
		case f.Num == 3 && f.Type == protowire.VarintType:
			p.Connection = ConnectionType(f.Varint)
		}
		return nil
	})
	return p, err
}
