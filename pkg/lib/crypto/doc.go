// Package crypto 提供 ucnode 密码学工具
//
// 本包提供节点身份密钥的生成、签名验证、序列化与文件存储。
//
// # 密钥类型
//
// 节点身份固定使用 Ed25519。序列化格式与 libp2p 的 PublicKey/PrivateKey
// protobuf 消息兼容，因此节点 ID 形如 "12D3KooW..."，可与其他实现互通。
//
// # 快速开始
//
//	priv, pub, err := crypto.GenerateEd25519Key(rand.Reader)
//	id, err := crypto.PeerIDFromPublicKey(pub)
//
// # 密钥文件
//
//	priv, err := crypto.LoadOrCreateKeyFile("node.key", nil)
//
// 提供口令时使用 Argon2id 派生密钥，AES-GCM 加密存储。
package crypto
