package dht

import (
	"bytes"
	"encoding/hex"
	"math/bits"

	"github.com/minio/sha256-simd"

	"github.com/dep2p/go-ucnode/pkg/types"
)

// KeyBits 键空间位数
const KeyBits = sha256.Size * 8

// Key 键空间中的位置
type Key [sha256.Size]byte

// KeyForPeer 节点在键空间中的位置
func KeyForPeer(p types.PeerID) Key {
	return KeyForBytes(p.Bytes())
}

// KeyForBytes 任意键在键空间中的位置
func KeyForBytes(b []byte) Key {
	return sha256.Sum256(b)
}

// String 返回十六进制形式
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// Distance 计算 XOR 距离
func (k Key) Distance(o Key) Key {
	var d Key
	for i := range k {
		d[i] = k[i] ^ o[i]
	}
	return d
}

// CommonPrefixLen 计算共同前缀位数
func CommonPrefixLen(a, b Key) int {
	for i := range a {
		if x := a[i] ^ b[i]; x != 0 {
			return i*8 + bits.LeadingZeros8(x)
		}
	}
	return KeyBits
}

// Closer a 比 b 更接近 target 时返回 true
func Closer(a, b, target Key) bool {
	da, db := a.Distance(target), b.Distance(target)
	return bytes.Compare(da[:], db[:]) < 0
}
