package identify

import (
	"sort"
	"sync"
	"time"

	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
)

// ============================================================================
//                              观测地址
// ============================================================================

const (
	// DefaultActivationThreshold 观测地址生效所需的不同观测者数量
	DefaultActivationThreshold = 4

	// observationTTL 观测记录有效期
	observationTTL = 30 * time.Minute
)

// observedAddrs 记录对端报告的本端地址
//
// 观测者按 IP 分组，同一 IP 的多个节点只算一次。
type observedAddrs struct {
	threshold int
	now       func() time.Time

	mu   sync.Mutex
	seen map[string]*observation
}

type observation struct {
	addr      multiaddr.Multiaddr
	observers map[string]time.Time
}

func newObservedAddrs(threshold int) *observedAddrs {
	if threshold <= 0 {
		threshold = DefaultActivationThreshold
	}
	return &observedAddrs{
		threshold: threshold,
		now:       time.Now,
		seen:      make(map[string]*observation),
	}
}

// record 记录一次观测，返回生效地址集合是否变化
//
// observed 必须与某个本地监听地址的协议结构一致，否则忽略。
func (o *observedAddrs) record(observed, observer multiaddr.Multiaddr, listen []multiaddr.Multiaddr) bool {
	if observed == nil || observer == nil || !matchesListen(observed, listen) {
		return false
	}
	group := observerGroup(observer)
	if group == "" {
		return false
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	before := o.activeLocked()
	key := observed.String()
	ob, ok := o.seen[key]
	if !ok {
		ob = &observation{addr: observed, observers: make(map[string]time.Time)}
		o.seen[key] = ob
	}
	ob.observers[group] = o.now()
	o.gcLocked()
	return !sameSet(before, o.activeLocked())
}

// active 返回已生效的观测地址
func (o *observedAddrs) active() []multiaddr.Multiaddr {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gcLocked()
	return o.activeLocked()
}

func (o *observedAddrs) activeLocked() []multiaddr.Multiaddr {
	var out []multiaddr.Multiaddr
	for _, ob := range o.seen {
		if len(ob.observers) >= o.threshold {
			out = append(out, ob.addr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (o *observedAddrs) gcLocked() {
	deadline := o.now().Add(-observationTTL)
	for key, ob := range o.seen {
		for g, at := range ob.observers {
			if at.Before(deadline) {
				delete(ob.observers, g)
			}
		}
		if len(ob.observers) == 0 {
			delete(o.seen, key)
		}
	}
}

// observerGroup 返回观测者分组键（IP 地址）
func observerGroup(a multiaddr.Multiaddr) string {
	if v, err := a.ValueForProtocol(multiaddr.P_IP4); err == nil {
		return v
	}
	if v, err := a.ValueForProtocol(multiaddr.P_IP6); err == nil {
		return v
	}
	return ""
}

// matchesListen observed 的协议序列与某个监听地址相同
func matchesListen(observed multiaddr.Multiaddr, listen []multiaddr.Multiaddr) bool {
	codes := observed.ProtoCodes()
	for _, l := range listen {
		if equalCodes(codes, l.ProtoCodes()) {
			return true
		}
	}
	return false
}

func equalCodes(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameSet(a, b []multiaddr.Multiaddr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
