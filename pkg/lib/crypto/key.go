package crypto

import (
	"crypto/rand"
	"crypto/subtle"
)

// ============================================================================
//                              密钥类型定义
// ============================================================================

// KeyType 密钥类型
//
// 取值与 libp2p crypto.pb 的 KeyType 枚举对齐。
type KeyType int32

const (
	// KeyTypeRSA RSA 密钥（仅用于识别，不支持生成）
	KeyTypeRSA KeyType = 0
	// KeyTypeEd25519 Ed25519 密钥
	KeyTypeEd25519 KeyType = 1
	// KeyTypeSecp256k1 Secp256k1 密钥（仅用于识别）
	KeyTypeSecp256k1 KeyType = 2
	// KeyTypeECDSA ECDSA 密钥（仅用于识别）
	KeyTypeECDSA KeyType = 3
)

// String 返回密钥类型名称
func (kt KeyType) String() string {
	switch kt {
	case KeyTypeRSA:
		return "RSA"
	case KeyTypeEd25519:
		return "Ed25519"
	case KeyTypeSecp256k1:
		return "Secp256k1"
	case KeyTypeECDSA:
		return "ECDSA"
	default:
		return "Unknown"
	}
}

// ============================================================================
//                              密钥接口定义
// ============================================================================

// Key 基础密钥接口
type Key interface {
	// Raw 返回原始密钥字节
	Raw() ([]byte, error)

	// Type 返回密钥类型
	Type() KeyType

	// Equals 比较两个密钥是否相等
	Equals(Key) bool
}

// PublicKey 公钥接口
type PublicKey interface {
	Key

	// Verify 使用此公钥验证签名
	Verify(data, sig []byte) (bool, error)
}

// PrivateKey 私钥接口
type PrivateKey interface {
	Key

	// Sign 使用此私钥签名数据
	Sign(data []byte) ([]byte, error)

	// GetPublic 返回对应的公钥
	GetPublic() PublicKey
}

// GenerateKeyPair 使用系统随机源生成 Ed25519 密钥对
func GenerateKeyPair() (PrivateKey, PublicKey, error) {
	return GenerateEd25519Key(rand.Reader)
}

// KeyEqual 通过比较类型与原始字节判断两个密钥是否相等
func KeyEqual(a, b Key) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type() != b.Type() {
		return false
	}
	ra, err := a.Raw()
	if err != nil {
		return false
	}
	rb, err := b.Raw()
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(ra, rb) == 1
}
