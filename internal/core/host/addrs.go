package host

import (
	"net"
	"sort"
	"sync"

	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
)

// 地址来源
const (
	// SourceObserved identify 观测到的外部地址
	SourceObserved = "observed"
	// SourceRelay 中继预约得到的电路地址
	SourceRelay = "relay"
	// SourceNAT NAT 探测得到的外部地址
	SourceNAT = "nat"
)

// addrsManager 合并监听地址与各来源地址
type addrsManager struct {
	listenAddrs func() []multiaddr.Multiaddr
	ifaceAddrs  func() ([]net.Addr, error)

	mu      sync.RWMutex
	sources map[string][]multiaddr.Multiaddr
}

func newAddrsManager(listenAddrs func() []multiaddr.Multiaddr) *addrsManager {
	return &addrsManager{
		listenAddrs: listenAddrs,
		ifaceAddrs:  net.InterfaceAddrs,
		sources:     make(map[string][]multiaddr.Multiaddr),
	}
}

func (m *addrsManager) setSource(name string, addrs []multiaddr.Multiaddr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(addrs) == 0 {
		delete(m.sources, name)
		return
	}
	m.sources[name] = append([]multiaddr.Multiaddr(nil), addrs...)
}

// addrs 返回去重后的地址，监听地址在前，来源按名称排序
func (m *addrsManager) addrs() []multiaddr.Multiaddr {
	var out []multiaddr.Multiaddr
	for _, a := range m.listenAddrs() {
		if !isDirect(a) {
			continue
		}
		out = append(out, m.expand(a)...)
	}

	m.mu.RLock()
	names := make([]string, 0, len(m.sources))
	for name := range m.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, m.sources[name]...)
	}
	m.mu.RUnlock()

	return multiaddr.UniqueAddrs(out)
}

// expand 将未指定 IP 的监听地址展开为各接口地址
func (m *addrsManager) expand(a multiaddr.Multiaddr) []multiaddr.Multiaddr {
	family := multiaddr.P_IP4
	v, err := a.ValueForProtocol(multiaddr.P_IP4)
	if err != nil {
		family = multiaddr.P_IP6
		if v, err = a.ValueForProtocol(multiaddr.P_IP6); err != nil {
			return []multiaddr.Multiaddr{a}
		}
	}
	ip := net.ParseIP(v)
	if ip == nil || !ip.IsUnspecified() {
		return []multiaddr.Multiaddr{a}
	}

	ifaces, err := m.ifaceAddrs()
	if err != nil {
		return []multiaddr.Multiaddr{a}
	}
	parts := multiaddr.Split(a)
	rest := multiaddr.Join(parts[1:]...)

	var out []multiaddr.Multiaddr
	for _, ia := range ifaces {
		ipnet, ok := ia.(*net.IPNet)
		if !ok {
			continue
		}
		isV4 := ipnet.IP.To4() != nil
		if isV4 != (family == multiaddr.P_IP4) || ipnet.IP.IsLinkLocalUnicast() {
			continue
		}
		name := "ip6"
		if isV4 {
			name = "ip4"
		}
		head, err := multiaddr.NewMultiaddr("/" + name + "/" + ipnet.IP.String())
		if err != nil {
			continue
		}
		out = append(out, multiaddr.Join(head, rest))
	}
	if len(out) == 0 {
		return []multiaddr.Multiaddr{a}
	}
	return out
}

// isDirect 地址以 IP 或域名开头
//
// 代理传输的监听地址（/p2p-circuit、/webrtc）不直接公告。
func isDirect(a multiaddr.Multiaddr) bool {
	codes := a.ProtoCodes()
	if len(codes) == 0 {
		return false
	}
	switch codes[0] {
	case multiaddr.P_IP4, multiaddr.P_IP6, multiaddr.P_DNS, multiaddr.P_DNS4, multiaddr.P_DNS6:
		return true
	}
	return false
}
