package mdns

import (
	"strings"

	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// dnsaddrPrefix TXT 记录中地址的前缀
const dnsaddrPrefix = "dnsaddr="

// maxTXTLen 单条 TXT 字符串的最大长度
const maxTXTLen = 255

// buildTXTRecords 为每个地址生成一条 TXT 记录
//
// 地址带上 /p2p/<self>；超过单条长度上限的地址被跳过。
func buildTXTRecords(self types.PeerID, addrs []multiaddr.Multiaddr) []string {
	suffix := "/p2p/" + self.String()
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a == nil {
			continue
		}
		rec := dnsaddrPrefix + a.String() + suffix
		if len(rec) > maxTXTLen {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// parseTXTRecords 从 TXT 记录还原对端信息
//
// 只接受指向同一对端的地址；没有可用地址时 ok 为 false。
func parseTXTRecords(fields []string) (info types.AddrInfo, ok bool) {
	for _, f := range fields {
		if !strings.HasPrefix(f, dnsaddrPrefix) {
			continue
		}
		m, err := multiaddr.NewMultiaddr(strings.TrimPrefix(f, dnsaddrPrefix))
		if err != nil {
			continue
		}
		transport, id := multiaddr.SplitP2P(m)
		if transport == nil || id == "" {
			continue
		}
		p, err := types.ParsePeerID(id)
		if err != nil {
			continue
		}
		if info.ID == "" {
			info.ID = p
		}
		if p != info.ID {
			continue
		}
		info.Addrs = append(info.Addrs, transport)
	}
	return info, info.ID != "" && len(info.Addrs) > 0
}
