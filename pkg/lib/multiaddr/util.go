package multiaddr

import "strings"

// Split 将地址拆分为单段地址列表
func Split(m Multiaddr) []Multiaddr {
	if m == nil {
		return nil
	}
	var out []Multiaddr
	_ = forEachComponent(m.Bytes(), func(c component) bool {
		raw := make([]byte, len(c.raw))
		copy(raw, c.raw)
		out = append(out, &multiaddr{bytes: raw})
		return true
	})
	return out
}

// Join 按顺序拼接多个地址
func Join(ms ...Multiaddr) Multiaddr {
	var buf []byte
	for _, m := range ms {
		if m != nil {
			buf = append(buf, m.Bytes()...)
		}
	}
	if len(buf) == 0 {
		return nil
	}
	return &multiaddr{bytes: buf}
}

// SplitP2P 分离传输地址与末尾的 /p2p/<id> 段
// 输入：/ip4/1.2.3.4/tcp/4001/p2p/12D3KooW...
// 输出：/ip4/1.2.3.4/tcp/4001, 12D3KooW...
//
// 末尾不是 p2p 段时原样返回，peerID 为空。
func SplitP2P(m Multiaddr) (transport Multiaddr, peerID string) {
	if m == nil {
		return nil, ""
	}
	parts := Split(m)
	if len(parts) == 0 {
		return m, ""
	}
	last := parts[len(parts)-1]
	if last.Protocols()[0].Code != P_P2P {
		return m, ""
	}
	id, _ := last.ValueForProtocol(P_P2P)
	return Join(parts[:len(parts)-1]...), id
}

// WithP2P 在传输地址末尾追加 /p2p/<id>
func WithP2P(transport Multiaddr, peerID string) (Multiaddr, error) {
	p2p, err := NewMultiaddr("/p2p/" + peerID)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return p2p, nil
	}
	return transport.Encapsulate(p2p), nil
}

// FilterAddrs 过滤多地址列表
func FilterAddrs(addrs []Multiaddr, filter func(Multiaddr) bool) []Multiaddr {
	result := make([]Multiaddr, 0, len(addrs))
	for _, addr := range addrs {
		if filter(addr) {
			result = append(result, addr)
		}
	}
	return result
}

// UniqueAddrs 去重多地址列表（保持顺序）
func UniqueAddrs(addrs []Multiaddr) []Multiaddr {
	seen := make(map[string]struct{}, len(addrs))
	result := make([]Multiaddr, 0, len(addrs))
	for _, addr := range addrs {
		if addr == nil {
			continue
		}
		k := string(addr.Bytes())
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		result = append(result, addr)
	}
	return result
}

// ParseStrings 批量解析地址字符串，遇到第一个错误即返回
func ParseStrings(ss []string) ([]Multiaddr, error) {
	out := make([]Multiaddr, 0, len(ss))
	for _, s := range ss {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		m, err := NewMultiaddr(s)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Strings 将地址列表转换为字符串列表
func Strings(addrs []Multiaddr) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}
