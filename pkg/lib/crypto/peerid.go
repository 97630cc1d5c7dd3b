package crypto

import (
	"github.com/minio/sha256-simd"

	"github.com/dep2p/go-ucnode/pkg/types"
)

// maxInlineKeyLength 序列化公钥不超过此长度时使用 identity multihash
const maxInlineKeyLength = 42

// PeerIDFromPublicKey 从公钥派生 PeerID
//
// 派生算法：序列化公钥不超过 42 字节时直接内联（identity multihash），
// 否则取 SHA-256。Ed25519 公钥总是内联。
func PeerIDFromPublicKey(pub PublicKey) (types.PeerID, error) {
	if pub == nil {
		return types.EmptyPeerID, ErrNilPublicKey
	}
	data, err := MarshalPublicKey(pub)
	if err != nil {
		return types.EmptyPeerID, err
	}
	if len(data) <= maxInlineKeyLength {
		return types.PeerID(types.NewMultihash(types.MultihashIdentity, data)), nil
	}
	sum := sha256.Sum256(data)
	return types.PeerID(types.NewMultihash(types.MultihashSHA256, sum[:])), nil
}

// PeerIDFromPrivateKey 从私钥派生 PeerID
func PeerIDFromPrivateKey(priv PrivateKey) (types.PeerID, error) {
	if priv == nil {
		return types.EmptyPeerID, ErrNilPrivateKey
	}
	return PeerIDFromPublicKey(priv.GetPublic())
}

// PublicKeyFromPeerID 从 identity 编码的 PeerID 还原公钥
func PublicKeyFromPeerID(id types.PeerID) (PublicKey, error) {
	digest, ok := id.ExtractIdentityDigest()
	if !ok {
		return nil, ErrNoPublicKeyInID
	}
	return UnmarshalPublicKey(digest)
}

// PeerIDMatchesPublicKey 判断公钥是否对应该 PeerID
func PeerIDMatchesPublicKey(id types.PeerID, pub PublicKey) bool {
	derived, err := PeerIDFromPublicKey(pub)
	if err != nil {
		return false
	}
	return derived == id
}
