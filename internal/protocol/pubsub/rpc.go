package pubsub

import (
	"encoding/binary"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-ucnode/internal/util/pbwire"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// ============================================================================
//                              RPC 编码
// ============================================================================

// subOpts 订阅通告
type subOpts struct {
	Subscribe bool
	Topic     string
}

// rpc gossip RPC
//
//	message RPC {
//	  repeated SubOpts subscriptions = 1;
//	  repeated Message publish = 2;
//	  optional ControlMessage control = 3;
//	}
//
//	message SubOpts {
//	  optional bool subscribe = 1;
//	  optional string topicid = 2;
//	}
//
//	message Message {
//	  optional bytes from = 1;
//	  optional bytes data = 2;
//	  optional bytes seqno = 3;
//	  optional string topic = 4;
//	  optional bytes signature = 5;
//	  optional bytes key = 6;
//	}
//
// control 字段（mesh 控制消息）不发送，解码时跳过。
type rpc struct {
	Subscriptions []subOpts
	Publish       []*types.GossipMessage
}

func (r *rpc) marshal() []byte {
	var b []byte
	for _, s := range r.Subscriptions {
		sb := pbwire.AppendBool(nil, 1, s.Subscribe)
		sb = pbwire.AppendString(sb, 2, s.Topic)
		b = pbwire.AppendBytes(b, 1, sb)
	}
	for _, m := range r.Publish {
		b = pbwire.AppendBytes(b, 2, marshalMessage(m, true))
	}
	return b
}

func (r *rpc) unmarshal(b []byte) error {
	*r = rpc{}
	return pbwire.Range(b, func(f pbwire.Field) error {
		if f.Type != protowire.BytesType {
			return nil
		}
		switch f.Num {
		case 1:
			s, err := unmarshalSubOpts(f.Bytes)
			if err != nil {
				return err
			}
			r.Subscriptions = append(r.Subscriptions, s)
		case 2:
			m, err := unmarshalMessage(f.Bytes)
			if err != nil {
				return err
			}
			r.Publish = append(r.Publish, m)
		}
		return nil
	})
}

func unmarshalSubOpts(b []byte) (subOpts, error) {
	var s subOpts
	err := pbwire.Range(b, func(f pbwire.Field) error {
		switch {
		case f.Num == 1 && f.Type == protowire.VarintType:
			s.Subscribe = f.Varint != 0
		case f.Num == 2 && f.Type == protowire.BytesType:
			s.Topic = string(f.Bytes)
		}
		return nil
	})
	return s, err
}

// marshalMessage 编码消息
//
// withSig 为 false 时不写 signature 与 key，得到的字节即签名内容。
func marshalMessage(m *types.GossipMessage, withSig bool) []byte {
	var b []byte
	if m.From != "" {
		b = pbwire.AppendBytes(b, 1, m.From.Bytes())
	}
	if len(m.Data) > 0 {
		b = pbwire.AppendBytes(b, 2, m.Data)
	}
	var seqno [8]byte
	binary.BigEndian.PutUint64(seqno[:], m.Seqno)
	b = pbwire.AppendBytes(b, 3, seqno[:])
	b = pbwire.AppendString(b, 4, m.Topic)
	if withSig {
		if len(m.Signature) > 0 {
			b = pbwire.AppendBytes(b, 5, m.Signature)
		}
		if len(m.Key) > 0 {
			b = pbwire.AppendBytes(b, 6, m.Key)
		}
	}
	return b
}

func unmarshalMessage(b []byte) (*types.GossipMessage, error) {
	m := &types.GossipMessage{}
	err := pbwire.Range(b, func(f pbwire.Field) error {
		if f.Type != protowire.BytesType {
			return nil
		}
		switch f.Num {
		case 1:
			id, err := types.PeerIDFromBytes(pbwire.Copy(f.Bytes))
			if err != nil {
				return err
			}
			m.From = id
		case 2:
			m.Data = pbwire.Copy(f.Bytes)
		case 3:
			// 兼容不足 8 字节的序列号
			var seqno [8]byte
			if len(f.Bytes) > 8 {
				return ErrInvalidSeqno
			}
			copy(seqno[8-len(f.Bytes):], f.Bytes)
			m.Seqno = binary.BigEndian.Uint64(seqno[:])
		case 4:
			m.Topic = string(f.Bytes)
		case 5:
			m.Signature = pbwire.Copy(f.Bytes)
		case 6:
			m.Key = pbwire.Copy(f.Bytes)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}
