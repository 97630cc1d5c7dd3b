package gater

import (
	"fmt"
	"net"
	"sync"

	"github.com/dep2p/go-ucnode/config"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// Gater 连接门控器
type Gater struct {
	mu sync.RWMutex

	// blockedPeers 黑名单节点
	blockedPeers map[types.PeerID]struct{}

	// blockedNets 黑名单网段
	blockedNets []*net.IPNet
}

var _ pkgif.ConnectionGater = (*Gater)(nil)

// New 创建门控器
func New() *Gater {
	return &Gater{
		blockedPeers: make(map[types.PeerID]struct{}),
	}
}

// FromConfig 按配置创建门控器
func FromConfig(cfg config.GaterConfig) (*Gater, error) {
	g := New()
	for _, s := range cfg.BlockedPeers {
		p, err := types.ParsePeerID(s)
		if err != nil {
			return nil, fmt.Errorf("blocked peer %q: %w", s, err)
		}
		g.BlockPeer(p)
	}
	for _, cidr := range cfg.BlockedCIDRs {
		if err := g.BlockCIDR(cidr); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// ============================================================================
//                              拦截
// ============================================================================

// InterceptPeerDial 拦截节点拨号
func (g *Gater) InterceptPeerDial(p types.PeerID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, blocked := g.blockedPeers[p]
	return !blocked
}

// InterceptAddrDial 拦截地址拨号
//
// p 为空时只检查地址。
func (g *Gater) InterceptAddrDial(p types.PeerID, addr multiaddr.Multiaddr) bool {
	if p != "" && !g.InterceptPeerDial(p) {
		return false
	}
	return g.allowAddr(addr)
}

// InterceptAccept 拦截入站连接
func (g *Gater) InterceptAccept(remote multiaddr.Multiaddr) bool {
	return g.allowAddr(remote)
}

// InterceptSecured 拦截已完成握手的连接
func (g *Gater) InterceptSecured(_ types.Direction, p types.PeerID) bool {
	return g.InterceptPeerDial(p)
}

// allowAddr 检查地址首个 IP 段是否落在黑名单网段内
//
// 没有 IP 段的地址（如 /dns4）总是放行。
func (g *Gater) allowAddr(addr multiaddr.Multiaddr) bool {
	ip := addrIP(addr)
	if ip == nil {
		return true
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, ipnet := range g.blockedNets {
		if ipnet.Contains(ip) {
			return false
		}
	}
	return true
}

func addrIP(addr multiaddr.Multiaddr) net.IP {
	if addr == nil {
		return nil
	}
	for _, code := range []int{multiaddr.P_IP4, multiaddr.P_IP6} {
		if v, err := addr.ValueForProtocol(code); err == nil {
			return net.ParseIP(v)
		}
	}
	return nil
}

// ============================================================================
//                              名单维护
// ============================================================================

// BlockPeer 添加节点到黑名单
func (g *Gater) BlockPeer(p types.PeerID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.blockedPeers[p] = struct{}{}
}

// UnblockPeer 从黑名单移除节点
func (g *Gater) UnblockPeer(p types.PeerID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.blockedPeers, p)
}

// BlockCIDR 阻止网段
func (g *Gater) BlockCIDR(cidr string) error {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("blocked cidr %q: %w", cidr, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.blockedNets = append(g.blockedNets, ipnet)
	return nil
}

// UnblockCIDR 移除网段，返回是否存在
func (g *Gater) UnblockCIDR(cidr string) bool {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for i, n := range g.blockedNets {
		if n.String() == ipnet.String() {
			g.blockedNets = append(g.blockedNets[:i], g.blockedNets[i+1:]...)
			return true
		}
	}
	return false
}

// BlockedPeers 返回黑名单节点
func (g *Gater) BlockedPeers() []types.PeerID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]types.PeerID, 0, len(g.blockedPeers))
	for p := range g.blockedPeers {
		out = append(out, p)
	}
	return out
}
