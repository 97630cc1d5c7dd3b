// Package msgid 计算主题消息的去重标识
//
// 标识只取决于发布者的序列号：将序列号格式化为十进制文本，按 UTF-8 编码后
// 取 SHA-256。负载、签名与到达路径都不参与计算，因此同一逻辑消息在任何
// 节点、任何转发路径上得到的标识都相同。
package msgid

import (
	"encoding/hex"
	"strconv"

	"github.com/minio/sha256-simd"
)

// Size 标识长度（字节）
const Size = sha256.Size

// Fingerprint 消息去重标识
type Fingerprint [Size]byte

// String 返回十六进制形式
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Key 返回可作为 map 键的字符串
func (f Fingerprint) Key() string {
	return string(f[:])
}

// SeqnoMessage 暴露序列号的消息
type SeqnoMessage interface {
	GetSeqno() uint64
}

// Func 传播层使用的标识函数
type Func func(msg SeqnoMessage) Fingerprint

// Default 默认标识函数
var Default Func = Compute

// Compute 计算消息标识
//
// 纯函数，可并发调用。
func Compute(msg SeqnoMessage) Fingerprint {
	return FromSeqno(msg.GetSeqno())
}

// FromSeqno 从序列号计算标识
func FromSeqno(seqno uint64) Fingerprint {
	return sha256.Sum256([]byte(strconv.FormatUint(seqno, 10)))
}

// ByName 按配置名称选择标识函数
//
// 目前只有 "seqno"（空字符串同义）。
func ByName(name string) (Func, bool) {
	switch name {
	case "", "seqno":
		return Default, true
	default:
		return nil, false
	}
}
