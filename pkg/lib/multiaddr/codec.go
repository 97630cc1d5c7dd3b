package multiaddr

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/multiformats/go-varint"
)

// component 二进制地址中的一个协议段
type component struct {
	proto Protocol
	// raw 包含代码、长度前缀与值的完整字节
	raw   []byte
	value []byte
}

// stringToBytes 将多地址字符串转换为二进制格式
func stringToBytes(s string) ([]byte, error) {
	input := s
	// 允许尾部斜杠
	s = strings.TrimRight(s, "/")

	if len(s) == 0 {
		return nil, parseErr(input, "empty multiaddr", nil)
	}
	if !strings.HasPrefix(s, "/") {
		return nil, parseErr(input, "multiaddr must begin with /", nil)
	}

	parts := strings.Split(s[1:], "/")
	buf := make([]byte, 0, len(s))

	for len(parts) > 0 {
		name := parts[0]
		p := ProtocolWithName(name)
		if p.Code == 0 {
			return nil, parseErr(input, "unknown protocol "+name, ErrUnknownProtocol)
		}
		buf = append(buf, p.VCode...)
		parts = parts[1:]

		if p.Size == 0 {
			continue
		}
		if len(parts) == 0 {
			return nil, parseErr(input, fmt.Sprintf("protocol %s requires a value", name), nil)
		}

		value := parts[0]
		parts = parts[1:]
		// 路径协议消费剩余全部段
		if p.Path {
			value = "/" + strings.Join(append([]string{value}, parts...), "/")
			parts = nil
		}

		vb, err := p.Transcoder.StringToBytes(value)
		if err != nil {
			return nil, parseErr(input, fmt.Sprintf("invalid value for %s", name), err)
		}
		if p.Size == LengthPrefixedVarSize {
			buf = append(buf, varint.ToUvarint(uint64(len(vb)))...)
		} else if len(vb)*8 != p.Size {
			return nil, parseErr(input, fmt.Sprintf("invalid value size for %s", name), nil)
		}
		buf = append(buf, vb...)
	}

	return buf, nil
}

// readComponent 从 b 的开头读取一个协议段
func readComponent(b []byte) (component, error) {
	code, n, err := varint.FromUvarint(b)
	if err != nil {
		return component{}, fmt.Errorf("failed to read protocol code: %w", err)
	}
	p := ProtocolWithCode(int(code))
	if p.Code == 0 {
		return component{}, fmt.Errorf("%w: code %d", ErrUnknownProtocol, code)
	}
	if p.Size == 0 {
		return component{proto: p, raw: b[:n]}, nil
	}

	offset := n
	size := p.Size / 8
	if p.Size == LengthPrefixedVarSize {
		length, m, err := varint.FromUvarint(b[n:])
		if err != nil {
			return component{}, fmt.Errorf("failed to read length for %s: %w", p.Name, err)
		}
		offset += m
		size = int(length)
	}
	if size < 0 || len(b)-offset < size {
		return component{}, fmt.Errorf("insufficient data for %s: need %d, have %d", p.Name, size, len(b)-offset)
	}
	value := b[offset : offset+size]
	if err := p.Transcoder.ValidateBytes(value); err != nil {
		return component{}, fmt.Errorf("invalid data for %s: %w", p.Name, err)
	}
	return component{proto: p, raw: b[:offset+size], value: value}, nil
}

// forEachComponent 依次遍历二进制地址的每个协议段
//
// fn 返回 false 时停止遍历。
func forEachComponent(b []byte, fn func(c component) bool) error {
	for len(b) > 0 {
		c, err := readComponent(b)
		if err != nil {
			return err
		}
		if !fn(c) {
			return nil
		}
		b = b[len(c.raw):]
	}
	return nil
}

// bytesToString 将二进制格式的多地址转换为字符串
func bytesToString(b []byte) (string, error) {
	if len(b) == 0 {
		return "", parseErr("", "empty multiaddr", nil)
	}

	var sb strings.Builder
	var convErr error
	err := forEachComponent(b, func(c component) bool {
		sb.WriteByte('/')
		sb.WriteString(c.proto.Name)
		if c.proto.Size == 0 {
			return true
		}
		s, err := c.proto.Transcoder.BytesToString(c.value)
		if err != nil {
			convErr = err
			return false
		}
		// 路径值自带前导斜杠
		if !c.proto.Path || !strings.HasPrefix(s, "/") {
			sb.WriteByte('/')
		}
		sb.WriteString(s)
		return true
	})
	if err == nil {
		err = convErr
	}
	if err != nil {
		return "", parseErr(hex.EncodeToString(b), "invalid binary multiaddr", err)
	}
	return sb.String(), nil
}

// validateBytes 验证二进制多地址的格式
func validateBytes(b []byte) error {
	if len(b) == 0 {
		return parseErr("", "empty multiaddr", nil)
	}
	if err := forEachComponent(b, func(component) bool { return true }); err != nil {
		return parseErr(hex.EncodeToString(b), "invalid binary multiaddr", err)
	}
	return nil
}
