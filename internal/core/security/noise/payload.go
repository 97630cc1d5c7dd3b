package noise

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// handshakePayload NoiseHandshakePayload 消息
//
//	message NoiseHandshakePayload {
//	  bytes identity_key = 1;
//	  bytes identity_sig = 2;
//	  bytes extensions   = 4;
//	}
type handshakePayload struct {
	IdentityKey []byte
	IdentitySig []byte
	Extensions  *Extensions
}

// Extensions NoiseExtensions 消息
//
//	message NoiseExtensions {
//	  repeated bytes  webtransport_certhashes = 1;
//	  repeated string stream_muxers           = 2;
//	}
type Extensions struct {
	// WebTransportCerthashes 服务端证书哈希（multihash 编码）
	WebTransportCerthashes [][]byte
	// StreamMuxers 支持的流复用协议
	StreamMuxers []string
}

func (e *Extensions) marshal() []byte {
	var b []byte
	for _, h := range e.WebTransportCerthashes {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, h)
	}
	for _, m := range e.StreamMuxers {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, m)
	}
	return b
}

func (e *Extensions) unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(n))
		}
		b = b[n:]
		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case 1:
			e.WebTransportCerthashes = append(e.WebTransportCerthashes, append([]byte(nil), v...))
		case 2:
			e.StreamMuxers = append(e.StreamMuxers, string(v))
		}
	}
	return nil
}

func (p *handshakePayload) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, p.IdentityKey)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, p.IdentitySig)
	if p.Extensions != nil {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Extensions.marshal())
	}
	return b
}

func (p *handshakePayload) unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(n))
		}
		b = b[n:]
		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case 1:
			p.IdentityKey = append([]byte(nil), v...)
		case 2:
			p.IdentitySig = append([]byte(nil), v...)
		case 4:
			ext := new(Extensions)
			if err := ext.unmarshal(v); err != nil {
				return err
			}
			p.Extensions = ext
		}
	}
	if len(p.IdentityKey) == 0 || len(p.IdentitySig) == 0 {
		return ErrInvalidPayload
	}
	return nil
}
