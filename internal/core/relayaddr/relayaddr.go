// Package relayaddr 从本节点地址集合派生经中继可拨的 WebRTC 地址
//
// 对于每个包含 p2p-circuit 段的地址 A，派生地址为 A + "/webrtc/p2p/<self>"：
// 远端先经中继到达本节点，再通过 WebRTC 升级为直连。
package relayaddr

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// webrtcSuffix 追加在中继地址之后的段
const webrtcSuffix = "/webrtc/p2p/"

// Derive 派生中继 WebRTC 地址
//
// 每个包含中继段的输入地址产生一个输出地址，其余地址被忽略。
// 不修改 addrs。拼接结果无法解析时返回 *multiaddr.ParseError（包装了出错的输入地址）。
func Derive(addrs []multiaddr.Multiaddr, self types.PeerID) ([]multiaddr.Multiaddr, error) {
	var out []multiaddr.Multiaddr
	for _, addr := range addrs {
		if addr == nil || !addr.HasProtocol(multiaddr.P_CIRCUIT) {
			continue
		}
		derived, err := multiaddr.NewMultiaddr(addr.String() + webrtcSuffix + self.String())
		if err != nil {
			return nil, fmt.Errorf("derive webrtc address from %s: %w", addr, err)
		}
		out = append(out, derived)
	}
	return out, nil
}

// DeriveStrings 与 Derive 相同，但输入为字符串形式
//
// 任一输入无法解析时返回 *multiaddr.ParseError，不丢弃地址。
func DeriveStrings(addrs []string, self types.PeerID) ([]multiaddr.Multiaddr, error) {
	parsed := make([]multiaddr.Multiaddr, 0, len(addrs))
	for _, s := range addrs {
		m, err := multiaddr.NewMultiaddr(s)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, m)
	}
	return Derive(parsed, self)
}

// ============================================================================
//                              Deriver
// ============================================================================

// Deriver 订阅地址变化并维护当前公告的 WebRTC 地址
type Deriver struct {
	self   types.PeerID
	logger *slog.Logger

	mu      sync.RWMutex
	current []multiaddr.Multiaddr
}

// NewDeriver 创建 Deriver
func NewDeriver(self types.PeerID, logger *slog.Logger) *Deriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deriver{self: self, logger: logger}
}

// OnAddressesChanged 处理一次地址集合变化
//
// addrs 是冻结的快照。派生失败时保留上一次的结果并返回错误。
func (d *Deriver) OnAddressesChanged(addrs types.AddressSet) ([]multiaddr.Multiaddr, error) {
	derived, err := Derive(addrs, d.self)
	if err != nil {
		d.logger.Error("relay address derivation failed", "error", err)
		return nil, err
	}
	for _, m := range derived {
		d.logger.Info(fmt.Sprintf("Listening on '%s'", m))
	}

	d.mu.Lock()
	d.current = derived
	d.mu.Unlock()
	return derived, nil
}

// Addresses 返回当前公告的 WebRTC 地址
func (d *Deriver) Addresses() []multiaddr.Multiaddr {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]multiaddr.Multiaddr, len(d.current))
	copy(out, d.current)
	return out
}
