package dht

import (
	"sort"
	"sync"
	"time"

	"github.com/dep2p/go-ucnode/pkg/types"
)

// ============================================================================
//                              K 桶
// ============================================================================

// entry 路由表条目
type entry struct {
	id       types.PeerID
	key      Key
	lastSeen time.Time
}

// bucket K 桶
//
// entries 最近活跃的在前；桶满时新节点进入替换缓存，
// 有节点被移除时从缓存中补位。
type bucket struct {
	entries      []*entry
	replacements []*entry
}

func (b *bucket) find(id types.PeerID) int {
	for i, e := range b.entries {
		if e.id == id {
			return i
		}
	}
	return -1
}

func (b *bucket) add(e *entry, size int) bool {
	if i := b.find(e.id); i >= 0 {
		b.entries = append(b.entries[:i], b.entries[i+1:]...)
		b.entries = append([]*entry{e}, b.entries...)
		return true
	}
	if len(b.entries) < size {
		b.entries = append([]*entry{e}, b.entries...)
		return true
	}

	for i, r := range b.replacements {
		if r.id == e.id {
			b.replacements = append(b.replacements[:i], b.replacements[i+1:]...)
			break
		}
	}
	b.replacements = append([]*entry{e}, b.replacements...)
	if len(b.replacements) > size {
		b.replacements = b.replacements[:size]
	}
	return false
}

func (b *bucket) remove(id types.PeerID) bool {
	if i := b.find(id); i >= 0 {
		b.entries = append(b.entries[:i], b.entries[i+1:]...)
		if len(b.replacements) > 0 {
			b.entries = append(b.entries, b.replacements[0])
			b.replacements = b.replacements[1:]
		}
		return true
	}
	for i, r := range b.replacements {
		if r.id == id {
			b.replacements = append(b.replacements[:i], b.replacements[i+1:]...)
			return true
		}
	}
	return false
}

// ============================================================================
//                              路由表
// ============================================================================

// RoutingTable Kademlia 路由表
type RoutingTable struct {
	local      Key
	self       types.PeerID
	bucketSize int

	mu      sync.RWMutex
	buckets [KeyBits]bucket
}

// NewRoutingTable 创建路由表
func NewRoutingTable(self types.PeerID, bucketSize int) *RoutingTable {
	if bucketSize <= 0 {
		bucketSize = 20
	}
	return &RoutingTable{local: KeyForPeer(self), self: self, bucketSize: bucketSize}
}

func (rt *RoutingTable) bucketFor(k Key) *bucket {
	cpl := CommonPrefixLen(rt.local, k)
	if cpl >= KeyBits {
		cpl = KeyBits - 1
	}
	return &rt.buckets[cpl]
}

// Add 添加或刷新节点
//
// 返回 false 表示桶已满，节点进入替换缓存。
func (rt *RoutingTable) Add(p types.PeerID) bool {
	if p == rt.self || p == "" {
		return false
	}
	k := KeyForPeer(p)
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.bucketFor(k).add(&entry{id: p, key: k, lastSeen: time.Now()}, rt.bucketSize)
}

// Remove 移除节点
func (rt *RoutingTable) Remove(p types.PeerID) bool {
	if p == rt.self {
		return false
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.bucketFor(KeyForPeer(p)).remove(p)
}

// Contains 节点是否在路由表中（不含替换缓存）
func (rt *RoutingTable) Contains(p types.PeerID) bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.bucketFor(KeyForPeer(p)).find(p) >= 0
}

// Size 路由表中的节点数
func (rt *RoutingTable) Size() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	n := 0
	for i := range rt.buckets {
		n += len(rt.buckets[i].entries)
	}
	return n
}

// ListPeers 返回全部节点
func (rt *RoutingTable) ListPeers() []types.PeerID {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	var out []types.PeerID
	for i := range rt.buckets {
		for _, e := range rt.buckets[i].entries {
			out = append(out, e.id)
		}
	}
	return out
}

// NearestPeers 返回距 target 最近的 count 个节点
func (rt *RoutingTable) NearestPeers(target Key, count int) []types.PeerID {
	rt.mu.RLock()
	var all []*entry
	for i := range rt.buckets {
		all = append(all, rt.buckets[i].entries...)
	}
	rt.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return Closer(all[i].key, all[j].key, target)
	})
	if len(all) > count {
		all = all[:count]
	}
	out := make([]types.PeerID, len(all))
	for i, e := range all {
		out[i] = e.id
	}
	return out
}
