// Package pb 实现电路中继 v2 的 Hop/Stop 消息编解码
//
//	message HopMessage {
//	  enum Type { RESERVE = 0; CONNECT = 1; STATUS = 2; }
//	  optional Type type = 1;
//	  optional Peer peer = 2;
//	  optional Reservation reservation = 3;
//	  optional Limit limit = 4;
//	  optional Status status = 5;
//	}
//	message StopMessage {
//	  enum Type { CONNECT = 0; STATUS = 1; }
//	  optional Type type = 1;
//	  optional Peer peer = 2;
//	  optional Limit limit = 3;
//	  optional Status status = 4;
//	}
//	message Peer { optional bytes id = 1; repeated bytes addrs = 2; }
//	message Reservation { optional uint64 expire = 1; repeated bytes addrs = 2; optional bytes voucher = 3; }
//	message Limit { optional uint32 duration = 1; optional uint64 data = 2; }
package pb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-ucnode/internal/util/pbwire"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// MaxMessageSize 单条中继控制消息上限
const MaxMessageSize = 4096

// HopType Hop 消息类型
type HopType uint64

const (
	HopReserve HopType = 0
	HopConnect HopType = 1
	HopStatus  HopType = 2
)

// StopType Stop 消息类型
type StopType uint64

const (
	StopConnect StopType = 0
	StopStatus  StopType = 1
)

// Status 中继状态码
type Status uint64

const (
	StatusUnused                Status = 0
	StatusOK                    Status = 100
	StatusReservationRefused    Status = 200
	StatusResourceLimitExceeded Status = 201
	StatusPermissionDenied      Status = 202
	StatusConnectionFailed      Status = 203
	StatusNoReservation         Status = 204
	StatusMalformedMessage      Status = 400
	StatusUnexpectedMessage     Status = 401
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusReservationRefused:
		return "RESERVATION_REFUSED"
	case StatusResourceLimitExceeded:
		return "RESOURCE_LIMIT_EXCEEDED"
	case StatusPermissionDenied:
		return "PERMISSION_DENIED"
	case StatusConnectionFailed:
		return "CONNECTION_FAILED"
	case StatusNoReservation:
		return "NO_RESERVATION"
	case StatusMalformedMessage:
		return "MALFORMED_MESSAGE"
	case StatusUnexpectedMessage:
		return "UNEXPECTED_MESSAGE"
	default:
		return fmt.Sprintf("status(%d)", uint64(s))
	}
}

// Peer 节点信息
type Peer struct {
	ID    types.PeerID
	Addrs []multiaddr.Multiaddr
}

// Reservation 预约信息
//
// Expire 为 Unix 秒。
type Reservation struct {
	Expire  uint64
	Addrs   []multiaddr.Multiaddr
	Voucher []byte
}

// Limit 电路限制，零值表示不限制
type Limit struct {
	Duration uint32
	Data     uint64
}

// HopMessage 与中继之间的消息
type HopMessage struct {
	Type        HopType
	Peer        *Peer
	Reservation *Reservation
	Limit       *Limit
	Status      Status
}

// StopMessage 中继与目标节点之间的消息
type StopMessage struct {
	Type   StopType
	Peer   *Peer
	Limit  *Limit
	Status Status
}

// ============================================================================
//                              编码
// ============================================================================

// Marshal 编码
func (m *HopMessage) Marshal() []byte {
	b := pbwire.AppendVarint(nil, 1, uint64(m.Type))
	if m.Peer != nil {
		b = pbwire.AppendBytes(b, 2, m.Peer.marshal())
	}
	if m.Reservation != nil {
		b = pbwire.AppendBytes(b, 3, m.Reservation.marshal())
	}
	if m.Limit != nil {
		b = pbwire.AppendBytes(b, 4, m.Limit.marshal())
	}
	if m.Status != StatusUnused {
		b = pbwire.AppendVarint(b, 5, uint64(m.Status))
	}
	return b
}

// Marshal 编码
func (m *StopMessage) Marshal() []byte {
	b := pbwire.AppendVarint(nil, 1, uint64(m.Type))
	if m.Peer != nil {
		b = pbwire.AppendBytes(b, 2, m.Peer.marshal())
	}
	if m.Limit != nil {
		b = pbwire.AppendBytes(b, 3, m.Limit.marshal())
	}
	if m.Status != StatusUnused {
		b = pbwire.AppendVarint(b, 4, uint64(m.Status))
	}
	return b
}

func (p *Peer) marshal() []byte {
	var b []byte
	if p.ID != "" {
		b = pbwire.AppendBytes(b, 1, p.ID.Bytes())
	}
	for _, a := range p.Addrs {
		b = pbwire.AppendBytes(b, 2, a.Bytes())
	}
	return b
}

func (r *Reservation) marshal() []byte {
	b := pbwire.AppendVarint(nil, 1, r.Expire)
	for _, a := range r.Addrs {
		b = pbwire.AppendBytes(b, 2, a.Bytes())
	}
	if len(r.Voucher) > 0 {
		b = pbwire.AppendBytes(b, 3, r.Voucher)
	}
	return b
}

func (l *Limit) marshal() []byte {
	var b []byte
	if l.Duration > 0 {
		b = pbwire.AppendVarint(b, 1, uint64(l.Duration))
	}
	if l.Data > 0 {
		b = pbwire.AppendVarint(b, 2, l.Data)
	}
	return b
}

// ============================================================================
//                              解码
// ============================================================================

// Unmarshal 解码
func (m *HopMessage) Unmarshal(b []byte) error {
	*m = HopMessage{}
	return pbwire.Range(b, func(f pbwire.Field) error {
		var err error
		switch {
		case f.Num == 1 && f.Type == protowire.VarintType:
			m.Type = HopType(f.Varint)
		case f.Num == 2 && f.Type == protowire.BytesType:
			m.Peer, err = unmarshalPeer(f.Bytes)
		case f.Num == 3 && f.Type == protowire.BytesType:
			m.Reservation, err = unmarshalReservation(f.Bytes)
		case f.Num == 4 && f.Type == protowire.BytesType:
			m.Limit, err = unmarshalLimit(f.Bytes)
		case f.Num == 5 && f.Type == protowire.VarintType:
			m.Status = Status(f.Varint)
		}
		return err
	})
}

// Unmarshal 解码
func (m *StopMessage) Unmarshal(b []byte) error {
	*m = StopMessage{}
	return pbwire.Range(b, func(f pbwire.Field) error {
		var err error
		switch {
		case f.Num == 1 && f.Type == protowire.VarintType:
			m.Type = StopType(f.Varint)
		case f.Num == 2 && f.Type == protowire.BytesType:
			m.Peer, err = unmarshalPeer(f.Bytes)
		case f.Num == 3 && f.Type == protowire.BytesType:
			m.Limit, err = unmarshalLimit(f.Bytes)
		case f.Num == 4 && f.Type == protowire.VarintType:
			m.Status = Status(f.Varint)
		}
		return err
	})
}

func unmarshalPeer(b []byte) (*Peer, error) {
	p := &Peer{}
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
			p.ID = id
		case 2:
			if a, err := multiaddr.NewMultiaddrBytes(f.Bytes); err == nil {
				p.Addrs = append(p.Addrs, a)
			}
		}
		return nil
	})
	return p, err
}

func unmarshalReservation(b []byte) (*Reservation, error) {
	r := &Reservation{}
	err := pbwire.Range(b, func(f pbwire.Field) error {
		switch {
		case f.Num == 1 && f.Type == protowire.VarintType:
			r.Expire = f.Varint
		case f.Num == 2 && f.Type == protowire.BytesType:
			if a, err := multiaddr.NewMultiaddrBytes(f.Bytes); err == nil {
				r.Addrs = append(r.Addrs, a)
			}
		case f.Num == 3 && f.Type == protowire.BytesType:
			r.Voucher = pbwire.Copy(f.Bytes)
		}
		return nil
	})
	return r, err
}

func unmarshalLimit(b []byte) (*Limit, error) {
	l := &Limit{}
	err := pbwire.Range(b, func(f pbwire.Field) error {
		if f.Type != protowire.VarintType {
			return nil
		}
		switch f.Num {
		case 1:
			l.Duration = uint32(f.Varint)
		case 2:
			l.Data = f.Varint
		}
		return nil
	})
	return l, err
}
