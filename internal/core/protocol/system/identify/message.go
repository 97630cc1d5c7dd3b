package identify

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-ucnode/internal/util/pbwire"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// Identify 消息字段号
const (
	fieldPublicKey       protowire.Number = 1
	fieldListenAddrs     protowire.Number = 2
	fieldProtocols       protowire.Number = 3
	fieldObservedAddr    protowire.Number = 4
	fieldProtocolVersion protowire.Number = 5
	fieldAgentVersion    protowire.Number = 6
)

// Message Identify 消息
//
//	message Identify {
//	  optional string protocolVersion = 5;
//	  optional string agentVersion = 6;
//	  optional bytes publicKey = 1;
//	  repeated bytes listenAddrs = 2;
//	  optional bytes observedAddr = 4;
//	  repeated string protocols = 3;
//	}
type Message struct {
	PublicKey       []byte
	ListenAddrs     []multiaddr.Multiaddr
	Protocols       []types.ProtocolID
	ObservedAddr    multiaddr.Multiaddr
	ProtocolVersion string
	AgentVersion    string
}

// Marshal 编码消息
func (m *Message) Marshal() []byte {
	var b []byte
	if len(m.PublicKey) > 0 {
		b = pbwire.AppendBytes(b, fieldPublicKey, m.PublicKey)
	}
	for _, a := range m.ListenAddrs {
		b = pbwire.AppendBytes(b, fieldListenAddrs, a.Bytes())
	}
	for _, p := range m.Protocols {
		b = pbwire.AppendString(b, fieldProtocols, string(p))
	}
	if m.ObservedAddr != nil {
		b = pbwire.AppendBytes(b, fieldObservedAddr, m.ObservedAddr.Bytes())
	}
	if m.ProtocolVersion != "" {
		b = pbwire.AppendString(b, fieldProtocolVersion, m.ProtocolVersion)
	}
	if m.AgentVersion != "" {
		b = pbwire.AppendString(b, fieldAgentVersion, m.AgentVersion)
	}
	return b
}

// Unmarshal 解码消息
//
// 无法解析的监听地址被跳过，无法解析的观测地址置空：
// 对端可能使用本实现不认识的协议。
func (m *Message) Unmarshal(b []byte) error {
	*m = Message{}
	return pbwire.Range(b, func(f pbwire.Field) error {
		if f.Type != protowire.BytesType {
			return nil
		}
		switch f.Num {
		case fieldPublicKey:
			m.PublicKey = pbwire.Copy(f.Bytes)
		case fieldListenAddrs:
			if a, err := multiaddr.NewMultiaddrBytes(f.Bytes); err == nil {
				m.ListenAddrs = append(m.ListenAddrs, a)
			}
		case fieldProtocols:
			m.Protocols = append(m.Protocols, types.ProtocolID(f.Bytes))
		case fieldObservedAddr:
			if a, err := multiaddr.NewMultiaddrBytes(f.Bytes); err == nil {
				m.ObservedAddr = a
			}
		case fieldProtocolVersion:
			m.ProtocolVersion = string(f.Bytes)
		case fieldAgentVersion:
			m.AgentVersion = string(f.Bytes)
		}
		return nil
	})
}

func (m *Message) String() string {
	return fmt.Sprintf("identify{agent=%q addrs=%d protocols=%d}", m.AgentVersion, len(m.ListenAddrs), len(m.Protocols))
}
