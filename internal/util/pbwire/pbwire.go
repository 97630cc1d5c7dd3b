// Package pbwire 提供基于 protowire 的最小 protobuf 编解码辅助
//
// 各协议消息（identify、autonat、中继、DHT、gossip、WebRTC 信令）
// 字段少且固定，直接用 protowire 手写编解码，不引入生成代码。
package pbwire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed 消息格式错误
var ErrMalformed = errors.New("malformed protobuf message")

// Field 解码得到的单个字段
//
// Bytes 只在 BytesType 时有效，Varint 只在 VarintType 时有效。
// Bytes 引用原始缓冲区，需要保留时调用方自行拷贝。
type Field struct {
	Num    protowire.Number
	Type   protowire.Type
	Bytes  []byte
	Varint uint64
}

// Range 依次回调消息中的每个字段
//
// 其他线型（fixed32、fixed64、group）被跳过。fn 返回错误时立即停止。
func Range(b []byte, fn func(Field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		f := Field{Num: num, Type: typ}
		switch typ {
		case protowire.BytesType:
			f.Bytes, n = protowire.ConsumeBytes(b)
		case protowire.VarintType:
			f.Varint, n = protowire.ConsumeVarint(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// AppendBytes 追加 bytes 字段（空值也写入）
func AppendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// AppendString 追加 string 字段
func AppendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// AppendVarint 追加 varint 字段
func AppendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// AppendBool 追加 bool 字段
func AppendBool(b []byte, num protowire.Number, v bool) []byte {
	return AppendVarint(b, num, protowire.EncodeBool(v))
}

// Copy 拷贝字节切片，nil 保持为 nil
func Copy(v []byte) []byte {
	if v == nil {
		return nil
	}
	return append([]byte{}, v...)
}
