package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
)

// ============================================================================
//                              密钥文件格式
// ============================================================================

// 密钥文件格式：
//
//   ┌────────────────────────────────────────────────────────────┐
//   │  Magic:     "UCNODE-KEY"  (10 bytes)                       │
//   │  Version:   uint8                                          │
//   │  Encrypted: uint8 (0=否, 1=是)                              │
//   │  Data:      protobuf 私钥，或 Salt(16) + Nonce(12) + 密文    │
//   └────────────────────────────────────────────────────────────┘

const (
	keyFileMagic   = "UCNODE-KEY"
	keyFileVersion = 1

	saltSize  = 16
	nonceSize = 12

	// Argon2id 参数
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32
)

// SaveKeyFile 将私钥写入文件（权限 0600）
//
// password 为空时明文存储。
func SaveKeyFile(path string, key PrivateKey, password []byte) error {
	data, err := encodeKeyFile(key, password)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0600)
}

// LoadKeyFile 从文件读取私钥
func LoadKeyFile(path string, password []byte) (PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeKeyFile(data, password)
}

// LoadOrCreateKeyFile 读取私钥，文件不存在时生成并保存
func LoadOrCreateKeyFile(path string, password []byte) (PrivateKey, error) {
	key, err := LoadKeyFile(path, password)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	key, _, err = GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	if err := SaveKeyFile(path, key, password); err != nil {
		return nil, err
	}
	return key, nil
}

func encodeKeyFile(key PrivateKey, password []byte) ([]byte, error) {
	plain, err := MarshalPrivateKey(key)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(keyFileMagic)
	buf.WriteByte(keyFileVersion)

	if len(password) == 0 {
		buf.WriteByte(0)
		buf.Write(plain)
		return buf.Bytes(), nil
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	buf.WriteByte(1)
	buf.Write(salt)
	buf.Write(nonce)
	buf.Write(gcm.Seal(nil, nonce, plain, []byte(keyFileMagic)))
	return buf.Bytes(), nil
}

func decodeKeyFile(data, password []byte) (PrivateKey, error) {
	header := len(keyFileMagic) + 2
	if len(data) < header || string(data[:len(keyFileMagic)]) != keyFileMagic {
		return nil, ErrInvalidKeyFile
	}
	if v := data[len(keyFileMagic)]; v != keyFileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidKeyFile, v)
	}
	encrypted := data[len(keyFileMagic)+1] == 1
	body := data[header:]

	if !encrypted {
		return UnmarshalPrivateKey(body)
	}
	if len(password) == 0 {
		return nil, ErrPasswordRequired
	}
	if len(body) < saltSize+nonceSize {
		return nil, ErrInvalidKeyFile
	}
	salt, nonce, ct := body[:saltSize], body[saltSize:saltSize+nonceSize], body[saltSize+nonceSize:]
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, ct, []byte(keyFileMagic))
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return UnmarshalPrivateKey(plain)
}

func newGCM(password, salt []byte) (cipher.AEAD, error) {
	k := argon2.IDKey(password, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
