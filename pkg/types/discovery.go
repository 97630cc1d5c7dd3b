package types

import (
	"fmt"

	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
)

// ============================================================================
//                              AddrInfo - 节点地址信息
// ============================================================================

// AddrInfo 节点 ID 及其地址（不含 /p2p 段）
type AddrInfo struct {
	ID    PeerID
	Addrs []multiaddr.Multiaddr
}

// String 返回可读形式
func (ai AddrInfo) String() string {
	return fmt.Sprintf("{%s: %v}", ai.ID, multiaddr.Strings(ai.Addrs))
}

// AddrInfoFromMultiaddr 从以 /p2p/<id> 结尾的地址解析 AddrInfo
//
// 中继地址（.../p2p/<relay>/p2p-circuit/p2p/<id>）会保留中继前缀作为传输地址。
func AddrInfoFromMultiaddr(m multiaddr.Multiaddr) (*AddrInfo, error) {
	transport, idStr := multiaddr.SplitP2P(m)
	if idStr == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoPeerIDInAddr, m)
	}
	id, err := ParsePeerID(idStr)
	if err != nil {
		return nil, err
	}
	info := &AddrInfo{ID: id}
	if transport != nil {
		info.Addrs = []multiaddr.Multiaddr{transport}
	}
	return info, nil
}

// AddrInfosFromMultiaddrs 解析并按节点合并地址（保持首次出现顺序）
func AddrInfosFromMultiaddrs(addrs []multiaddr.Multiaddr) ([]AddrInfo, error) {
	index := make(map[PeerID]int)
	var out []AddrInfo
	for _, m := range addrs {
		info, err := AddrInfoFromMultiaddr(m)
		if err != nil {
			return nil, err
		}
		if i, ok := index[info.ID]; ok {
			out[i].Addrs = append(out[i].Addrs, info.Addrs...)
			continue
		}
		index[info.ID] = len(out)
		out = append(out, *info)
	}
	return out, nil
}

// P2PAddrs 返回带 /p2p/<id> 后缀的完整地址
func (ai AddrInfo) P2PAddrs() ([]multiaddr.Multiaddr, error) {
	out := make([]multiaddr.Multiaddr, 0, len(ai.Addrs))
	for _, a := range ai.Addrs {
		m, err := multiaddr.WithP2P(a, ai.ID.String())
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
