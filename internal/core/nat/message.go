package nat

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-ucnode/internal/util/pbwire"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// messageType AutoNAT 消息类型
type messageType uint64

const (
	typeDial         messageType = 0
	typeDialResponse messageType = 1
)

// ResponseStatus 拨回结果
type ResponseStatus uint64

const (
	StatusOK            ResponseStatus = 0
	StatusDialError     ResponseStatus = 100
	StatusDialRefused   ResponseStatus = 101
	StatusBadRequest    ResponseStatus = 200
	StatusInternalError ResponseStatus = 300
)

func (s ResponseStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusDialError:
		return "E_DIAL_ERROR"
	case StatusDialRefused:
		return "E_DIAL_REFUSED"
	case StatusBadRequest:
		return "E_BAD_REQUEST"
	case StatusInternalError:
		return "E_INTERNAL_ERROR"
	default:
		return fmt.Sprintf("status(%d)", uint64(s))
	}
}

// message AutoNAT 消息
//
//	message Message {
//	  optional MessageType type = 1;
//	  optional Dial dial = 2;            // Dial { optional PeerInfo peer = 1; }
//	  optional DialResponse dialResponse = 3;
//	}
//	message PeerInfo { optional bytes id = 1; repeated bytes addrs = 2; }
//	message DialResponse { optional ResponseStatus status = 1; optional string statusText = 2; optional bytes addr = 3; }
type message struct {
	Type     messageType
	Dial     *dialRequest
	Response *dialResponse
}

type dialRequest struct {
	Peer  types.PeerID
	Addrs []multiaddr.Multiaddr
}

type dialResponse struct {
	Status ResponseStatus
	Text   string
	Addr   multiaddr.Multiaddr
}

func (m *message) marshal() []byte {
	b := pbwire.AppendVarint(nil, 1, uint64(m.Type))
	if m.Dial != nil {
		var peer []byte
		if m.Dial.Peer != "" {
			peer = pbwire.AppendBytes(peer, 1, m.Dial.Peer.Bytes())
		}
		for _, a := range m.Dial.Addrs {
			peer = pbwire.AppendBytes(peer, 2, a.Bytes())
		}
		b = pbwire.AppendBytes(b, 2, pbwire.AppendBytes(nil, 1, peer))
	}
	if m.Response != nil {
		var r []byte
		r = pbwire.AppendVarint(r, 1, uint64(m.Response.Status))
		if m.Response.Text != "" {
			r = pbwire.AppendString(r, 2, m.Response.Text)
		}
		if m.Response.Addr != nil {
			r = pbwire.AppendBytes(r, 3, m.Response.Addr.Bytes())
		}
		b = pbwire.AppendBytes(b, 3, r)
	}
	return b
}

func (m *message) unmarshal(b []byte) error {
	*m = message{}
	return pbwire.Range(b, func(f pbwire.Field) error {
		switch {
		case f.Num == 1 && f.Type == protowire.VarintType:
			m.Type = messageType(f.Varint)
		case f.Num == 2 && f.Type == protowire.BytesType:
			d, err := unmarshalDial(f.Bytes)
			if err != nil {
				return err
			}
			m.Dial = d
		case f.Num == 3 && f.Type == protowire.BytesType:
			r, err := unmarshalResponse(f.Bytes)
			if err != nil {
				return err
			}
			m.Response = r
		}
		return nil
	})
}

func unmarshalDial(b []byte) (*dialRequest, error) {
	d := &dialRequest{}
	err := pbwire.Range(b, func(f pbwire.Field) error {
		if f.Num != 1 || f.Type != protowire.BytesType {
			return nil
		}
		return pbwire.Range(f.Bytes, func(pf pbwire.Field) error {
			if pf.Type != protowire.BytesType {
				return nil
			}
			switch pf.Num {
			case 1:
				id, err := types.PeerIDFromBytes(pf.Bytes)
				if err != nil {
					return fmt.Errorf("%w: peer id: %v", ErrBadMessage, err)
				}
				d.Peer = id
			case 2:
				// 不认识的地址跳过
				if a, err := multiaddr.NewMultiaddrBytes(pf.Bytes); err == nil {
					d.Addrs = append(d.Addrs, a)
				}
			}
			return nil
		})
	})
	return d, err
}

func unmarshalResponse(b []byte) (*dialResponse, error) {
	r := &dialResponse{}
	err := pbwire.Range(b, func(f pbwire.Field) error {
		switch {
		case f.Num == 1 && f.Type == protowire.VarintType:
			r.Status = ResponseStatus(f.Varint)
		case f.Num == 2 && f.Type == protowire.BytesType:
			r.Text = string(f.Bytes)
		case f.Num == 3 && f.Type == protowire.BytesType:
			if a, err := multiaddr.NewMultiaddrBytes(f.Bytes); err == nil {
				r.Addr = a
			}
		}
		return nil
	})
	return r, err
}
