package types

import (
	"fmt"

	"github.com/mr-tron/base58/base58"
	"github.com/multiformats/go-varint"
)

// ============================================================================
//                              PeerID - 节点标识
// ============================================================================

// PeerID 节点唯一标识符
//
// 内部保存 multihash 的原始字节（以 string 承载以便作为 map 键）。
// 对 Ed25519 公钥，multihash 使用 identity 编码，公钥可直接从 ID 中还原。
//
// 外部表示格式：
//   - String(): Base58btc 编码（"12D3KooW..."）
//   - ShortString(): 日志使用的短标识
type PeerID string

// EmptyPeerID 空节点 ID
const EmptyPeerID PeerID = ""

// multihash 代码
const (
	// MultihashIdentity identity 哈希（内容即原文）
	MultihashIdentity = 0x00
	// MultihashSHA256 SHA2-256
	MultihashSHA256 = 0x12
)

// String 返回 Base58 字符串表示
func (id PeerID) String() string {
	if id == EmptyPeerID {
		return ""
	}
	return base58.Encode([]byte(id))
}

// ShortString 返回短字符串表示
//
// 取 Base58 末尾 6 个字符（Ed25519 ID 的前缀都相同）。
func (id PeerID) ShortString() string {
	s := id.String()
	if len(s) <= 10 {
		return s
	}
	return "*" + s[len(s)-6:]
}

// Bytes 返回 multihash 字节
func (id PeerID) Bytes() []byte {
	return []byte(id)
}

// IsEmpty 检查 ID 是否为空
func (id PeerID) IsEmpty() bool {
	return id == EmptyPeerID
}

// Validate 校验 multihash 结构
func (id PeerID) Validate() error {
	if id == EmptyPeerID {
		return ErrEmptyPeerID
	}
	_, _, err := decodeMultihash([]byte(id))
	return err
}

// ExtractIdentityDigest 返回 identity multihash 的内容
//
// 非 identity 编码时 ok 为 false。
func (id PeerID) ExtractIdentityDigest() (digest []byte, ok bool) {
	code, digest, err := decodeMultihash([]byte(id))
	if err != nil || code != MultihashIdentity {
		return nil, false
	}
	return digest, true
}

// MarshalText 实现 encoding.TextMarshaler
func (id PeerID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (id *PeerID) UnmarshalText(data []byte) error {
	p, err := ParsePeerID(string(data))
	if err != nil {
		return err
	}
	*id = p
	return nil
}

// PeerIDFromBytes 从 multihash 字节创建 PeerID
func PeerIDFromBytes(b []byte) (PeerID, error) {
	if _, _, err := decodeMultihash(b); err != nil {
		return EmptyPeerID, err
	}
	return PeerID(b), nil
}

// ParsePeerID 从 Base58 字符串解析 PeerID
func ParsePeerID(s string) (PeerID, error) {
	if s == "" {
		return EmptyPeerID, ErrEmptyPeerID
	}
	b, err := base58.Decode(s)
	if err != nil {
		return EmptyPeerID, fmt.Errorf("%w: %s", ErrInvalidPeerID, s)
	}
	return PeerIDFromBytes(b)
}

// NewMultihash 构造 <code><len><digest> 结构
func NewMultihash(code uint64, digest []byte) []byte {
	out := make([]byte, 0, len(digest)+4)
	out = append(out, varint.ToUvarint(code)...)
	out = append(out, varint.ToUvarint(uint64(len(digest)))...)
	return append(out, digest...)
}

func decodeMultihash(b []byte) (uint64, []byte, error) {
	code, n, err := varint.FromUvarint(b)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrInvalidPeerID, err)
	}
	length, m, err := varint.FromUvarint(b[n:])
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrInvalidPeerID, err)
	}
	digest := b[n+m:]
	if uint64(len(digest)) != length {
		return 0, nil, fmt.Errorf("%w: digest length mismatch", ErrInvalidPeerID)
	}
	return code, digest, nil
}

// ============================================================================
//                              ProtocolID - 协议标识
// ============================================================================

// ProtocolID 流协议标识（如 "/ipfs/id/1.0.0"）
type ProtocolID string

// String 返回字符串形式
func (p ProtocolID) String() string {
	return string(p)
}
