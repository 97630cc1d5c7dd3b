package crypto

import "errors"

// ============================================================================
//                              错误定义
// ============================================================================

// 密钥相关错误
var (
	// ErrBadKeyType 不支持的密钥类型
	ErrBadKeyType = errors.New("invalid or unsupported key type")

	// ErrNilPrivateKey 私钥为空
	ErrNilPrivateKey = errors.New("nil private key")

	// ErrNilPublicKey 公钥为空
	ErrNilPublicKey = errors.New("nil public key")

	// ErrInvalidKeySize 密钥大小无效
	ErrInvalidKeySize = errors.New("invalid key size")
)

// 序列化相关错误
var (
	// ErrUnmarshalFailed 反序列化失败
	ErrUnmarshalFailed = errors.New("unmarshal failed")

	// ErrNoPublicKeyInID 节点 ID 不是 identity 编码，无法还原公钥
	ErrNoPublicKeyInID = errors.New("public key not extractable from peer ID")
)

// 密钥文件相关错误
var (
	// ErrInvalidKeyFile 密钥文件格式无效
	ErrInvalidKeyFile = errors.New("invalid key file format")

	// ErrPasswordRequired 密钥文件已加密但未提供口令
	ErrPasswordRequired = errors.New("key file is encrypted, password required")

	// ErrDecryptionFailed 解密失败（口令错误或文件损坏）
	ErrDecryptionFailed = errors.New("decryption failed")
)
