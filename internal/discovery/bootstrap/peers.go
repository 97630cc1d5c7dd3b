package bootstrap

import (
	"fmt"

	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// Peer 一个引导目标
//
// 静态节点 Info 非空；dnsaddr 目标只有 DNSAddr，ID 在地址带 /p2p 时用于过滤解析结果。
type Peer struct {
	Info    types.AddrInfo
	DNSAddr multiaddr.Multiaddr
}

// Name 日志中使用的标识
func (p Peer) Name() string {
	if p.DNSAddr != nil {
		return p.DNSAddr.String()
	}
	return p.Info.ID.String()
}

// ParsePeers 解析引导地址
//
// 同一节点的静态地址合并，顺序按首次出现。任一地址无效时返回错误。
func ParsePeers(ss []string) ([]Peer, error) {
	var (
		out    []Peer
		static []multiaddr.Multiaddr
	)
	for _, s := range ss {
		ma, err := multiaddr.NewMultiaddr(s)
		if err != nil {
			return nil, fmt.Errorf("bootstrap peer %q: %w", s, err)
		}
		if ma.HasProtocol(multiaddr.P_DNSADDR) {
			out = append(out, Peer{DNSAddr: ma})
			continue
		}
		if _, id := multiaddr.SplitP2P(ma); id == "" {
			return nil, fmt.Errorf("%w: %q has no /p2p component", ErrInvalidBootstrapAddr, s)
		}
		static = append(static, ma)
	}

	infos, err := types.AddrInfosFromMultiaddrs(static)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBootstrapAddr, err)
	}
	for _, info := range infos {
		out = append(out, Peer{Info: info})
	}
	return out, nil
}
