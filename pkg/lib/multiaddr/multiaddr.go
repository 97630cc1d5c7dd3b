package multiaddr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
)

// Multiaddr 是自描述的网络地址接口
//
// 实现不可变；Encapsulate/Decapsulate 返回新地址。
type Multiaddr interface {
	// Bytes 返回二进制表示（不要修改返回的字节，可能是共享的）
	Bytes() []byte

	// String 返回规范字符串表示
	String() string

	// Equal 判断两个地址是否相等（按二进制比较）
	Equal(Multiaddr) bool

	// Protocols 返回地址包含的协议列表（按出现顺序）
	Protocols() []Protocol

	// ProtoCodes 返回地址包含的协议代码列表（按出现顺序）
	ProtoCodes() []int

	// HasProtocol 判断地址是否包含指定协议代码
	HasProtocol(code int) bool

	// Encapsulate 在尾部追加另一个地址
	Encapsulate(Multiaddr) Multiaddr

	// Decapsulate 移除最后一次出现的 other 及其之后的部分
	Decapsulate(Multiaddr) Multiaddr

	// ValueForProtocol 获取第一个指定协议代码的值
	ValueForProtocol(code int) (string, error)

	// ToTCPAddr 转换为 TCP 地址
	ToTCPAddr() (*net.TCPAddr, error)

	// ToUDPAddr 转换为 UDP 地址
	ToUDPAddr() (*net.UDPAddr, error)
}

// multiaddr 是 Multiaddr 接口的实现
type multiaddr struct {
	bytes []byte
}

// NewMultiaddr 从字符串创建多地址
//
// 失败时返回 *ParseError。
func NewMultiaddr(s string) (Multiaddr, error) {
	b, err := stringToBytes(s)
	if err != nil {
		return nil, err
	}
	return &multiaddr{bytes: b}, nil
}

// NewMultiaddrBytes 从字节创建多地址
func NewMultiaddrBytes(b []byte) (Multiaddr, error) {
	if err := validateBytes(b); err != nil {
		return nil, err
	}
	// 复制一份避免外部修改
	buf := make([]byte, len(b))
	copy(buf, b)
	return &multiaddr{bytes: buf}, nil
}

// StringCast 从字符串创建多地址，失败时 panic
// 仅用于编译期已知有效的常量地址
func StringCast(s string) Multiaddr {
	m, err := NewMultiaddr(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Bytes 返回二进制表示
func (m *multiaddr) Bytes() []byte {
	return m.bytes
}

// String 返回字符串表示
func (m *multiaddr) String() string {
	s, err := bytesToString(m.bytes)
	if err != nil {
		// 构造时已校验，不应发生
		panic(fmt.Errorf("multiaddr failed to convert back to string: %w", err))
	}
	return s
}

// Equal 判断两个地址是否相等
func (m *multiaddr) Equal(other Multiaddr) bool {
	if other == nil {
		return false
	}
	return bytes.Equal(m.bytes, other.Bytes())
}

// Protocols 返回地址包含的协议列表
func (m *multiaddr) Protocols() []Protocol {
	var out []Protocol
	_ = forEachComponent(m.bytes, func(c component) bool {
		out = append(out, c.proto)
		return true
	})
	return out
}

// ProtoCodes 返回地址包含的协议代码列表
func (m *multiaddr) ProtoCodes() []int {
	var out []int
	_ = forEachComponent(m.bytes, func(c component) bool {
		out = append(out, c.proto.Code)
		return true
	})
	return out
}

// HasProtocol 判断地址是否包含指定协议代码
func (m *multiaddr) HasProtocol(code int) bool {
	found := false
	_ = forEachComponent(m.bytes, func(c component) bool {
		found = c.proto.Code == code
		return !found
	})
	return found
}

// Encapsulate 封装另一个地址
func (m *multiaddr) Encapsulate(other Multiaddr) Multiaddr {
	if other == nil {
		return m
	}
	ob := other.Bytes()
	result := make([]byte, len(m.bytes)+len(ob))
	copy(result, m.bytes)
	copy(result[len(m.bytes):], ob)
	return &multiaddr{bytes: result}
}

// Decapsulate 解封装
//
// 只在协议段边界上匹配；找不到 other 时原样返回，
// 整个地址被移除时返回 nil。
func (m *multiaddr) Decapsulate(other Multiaddr) Multiaddr {
	if other == nil {
		return m
	}
	ob := other.Bytes()
	if len(ob) == 0 || len(ob) > len(m.bytes) {
		return m
	}

	last := -1
	offset := 0
	_ = forEachComponent(m.bytes, func(c component) bool {
		if bytes.HasPrefix(m.bytes[offset:], ob) {
			last = offset
		}
		offset += len(c.raw)
		return true
	})

	switch last {
	case -1:
		return m
	case 0:
		return nil
	}
	out := make([]byte, last)
	copy(out, m.bytes[:last])
	return &multiaddr{bytes: out}
}

// ValueForProtocol 获取指定协议代码的值
func (m *multiaddr) ValueForProtocol(code int) (string, error) {
	var (
		found bool
		value string
		err   error
	)
	_ = forEachComponent(m.bytes, func(c component) bool {
		if c.proto.Code != code {
			return true
		}
		found = true
		if c.proto.Size != 0 {
			value, err = c.proto.Transcoder.BytesToString(c.value)
		}
		return false
	})
	if !found {
		return "", fmt.Errorf("%w: code %d", ErrProtocolNotFound, code)
	}
	return value, err
}

// MarshalBinary 实现 encoding.BinaryMarshaler
func (m *multiaddr) MarshalBinary() ([]byte, error) {
	return m.Bytes(), nil
}

// UnmarshalBinary 实现 encoding.BinaryUnmarshaler
func (m *multiaddr) UnmarshalBinary(data []byte) error {
	ma, err := NewMultiaddrBytes(data)
	if err != nil {
		return err
	}
	*m = *(ma.(*multiaddr))
	return nil
}

// MarshalText 实现 encoding.TextMarshaler
func (m *multiaddr) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (m *multiaddr) UnmarshalText(data []byte) error {
	ma, err := NewMultiaddr(string(data))
	if err != nil {
		return err
	}
	*m = *(ma.(*multiaddr))
	return nil
}

// MarshalJSON 实现 json.Marshaler
func (m *multiaddr) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON 实现 json.Unmarshaler
func (m *multiaddr) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	ma, err := NewMultiaddr(s)
	if err != nil {
		return err
	}
	*m = *(ma.(*multiaddr))
	return nil
}
