package types

import "github.com/dep2p/go-ucnode/pkg/lib/multiaddr"

// ============================================================================
//                              AddressSet - 地址集合
// ============================================================================

// AddressSet 某个节点当前认为可达的有序地址集合
//
// 集合整体替换，从不原地修改。观察者拿到的总是 Clone 出来的快照。
type AddressSet []multiaddr.Multiaddr

// Clone 返回浅拷贝（Multiaddr 本身不可变）
func (s AddressSet) Clone() AddressSet {
	if s == nil {
		return nil
	}
	out := make(AddressSet, len(s))
	copy(out, s)
	return out
}

// Contains 判断集合是否包含地址
func (s AddressSet) Contains(addr multiaddr.Multiaddr) bool {
	for _, a := range s {
		if a.Equal(addr) {
			return true
		}
	}
	return false
}

// Equal 按顺序比较两个集合
func (s AddressSet) Equal(other AddressSet) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if !s[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// Strings 返回字符串形式
func (s AddressSet) Strings() []string {
	return multiaddr.Strings(s)
}
