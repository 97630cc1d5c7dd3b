package webrtc

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pion/webrtc/v4"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-ucnode/internal/util/framing"
	"github.com/dep2p/go-ucnode/internal/util/pbwire"
)

// maxSignalSize 单条信令消息上限（SDP 含全部候选）
const maxSignalSize = 16 << 10

// signalType 信令消息类型
type signalType uint64

const (
	signalOffer     signalType = 0
	signalAnswer    signalType = 1
	signalCandidate signalType = 2
)

func (t signalType) String() string {
	switch t {
	case signalOffer:
		return "SDP_OFFER"
	case signalAnswer:
		return "SDP_ANSWER"
	case signalCandidate:
		return "ICE_CANDIDATE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint64(t))
	}
}

// signal 信令消息
//
//	message Message {
//	  optional Type type = 1;
//	  optional string data = 2;
//	}
//
// 候选以 RTCIceCandidateInit 的 JSON 承载；空串或 "null" 表示候选结束。
type signal struct {
	Type signalType
	Data string
}

func (m *signal) marshal() []byte {
	b := pbwire.AppendVarint(nil, 1, uint64(m.Type))
	if m.Data != "" {
		b = pbwire.AppendString(b, 2, m.Data)
	}
	return b
}

func (m *signal) unmarshal(b []byte) error {
	*m = signal{}
	return pbwire.Range(b, func(f pbwire.Field) error {
		switch {
		case f.Num == 1 && f.Type == protowire.VarintType:
			m.Type = signalType(f.Varint)
		case f.Num == 2 && f.Type == protowire.BytesType:
			m.Data = string(f.Bytes)
		}
		return nil
	})
}

func writeSignal(w io.Writer, typ signalType, data string) error {
	msg := signal{Type: typ, Data: data}
	return framing.WriteMsg(w, msg.marshal())
}

func readSignal(r io.Reader) (*signal, error) {
	b, err := framing.ReadMsg(r, maxSignalSize)
	if err != nil {
		return nil, err
	}
	var msg signal
	if err := msg.unmarshal(b); err != nil {
		return nil, err
	}
	return &msg, nil
}

// expectSignal 读取一条指定类型的信令
func expectSignal(r io.Reader, want signalType) (string, error) {
	msg, err := readSignal(r)
	if err != nil {
		return "", err
	}
	if msg.Type != want {
		return "", fmt.Errorf("%w: got %s, want %s", ErrUnexpectedSignal, msg.Type, want)
	}
	return msg.Data, nil
}

// endOfCandidates 候选结束标记
//
// 本端等待收集完成后才发送 SDP，候选已全部包含在 SDP 中，
// 之后只补发这一条结束标记。
const endOfCandidates = "null"

// decodeCandidate 解码 ICE 候选；done 为 true 表示对端候选已发送完毕
func decodeCandidate(data string) (init webrtc.ICECandidateInit, done bool, err error) {
	if data == "" || data == endOfCandidates {
		return init, true, nil
	}
	if err := json.Unmarshal([]byte(data), &init); err != nil {
		return init, false, fmt.Errorf("decode ice candidate: %w", err)
	}
	if init.Candidate == "" {
		return init, true, nil
	}
	return init, false, nil
}
