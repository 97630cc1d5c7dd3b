package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mss "github.com/multiformats/go-multistream"

	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// DefaultNegotiationTimeout 入站流协议协商超时
const DefaultNegotiationTimeout = 10 * time.Second

// ErrHostClosed Host 已关闭
var ErrHostClosed = errors.New("host closed")

// Host P2P 主机实现
type Host struct {
	swarm     pkgif.Swarm
	peerstore pkgif.Peerstore
	bus       pkgif.EventBus
	book      pkgif.AddressBook
	logger    *slog.Logger

	mux      *mss.MultistreamMuxer[types.ProtocolID]
	mu       sync.RWMutex
	handlers map[types.ProtocolID]pkgif.StreamHandler

	addrs *addrsManager

	negotiationTimeout time.Duration
	closed             atomic.Bool
}

var _ pkgif.Host = (*Host)(nil)

// New 创建 Host 并接管 Swarm 的入站流
//
// book 可为 nil，此时地址变化不写入地址簿。
func New(swarm pkgif.Swarm, bus pkgif.EventBus, book pkgif.AddressBook, logger *slog.Logger) *Host {
	if logger == nil {
		logger = log.Discard()
	}
	h := &Host{
		swarm:              swarm,
		peerstore:          swarm.Peerstore(),
		bus:                bus,
		book:               book,
		logger:             logger,
		mux:                mss.NewMultistreamMuxer[types.ProtocolID](),
		handlers:           make(map[types.ProtocolID]pkgif.StreamHandler),
		negotiationTimeout: DefaultNegotiationTimeout,
	}
	h.addrs = newAddrsManager(swarm.ListenAddresses)
	swarm.SetStreamHandler(h.handleInbound)
	return h
}

// ID 返回本地节点 ID
func (h *Host) ID() types.PeerID { return h.swarm.LocalPeer() }

// Network 返回底层 Swarm
func (h *Host) Network() pkgif.Swarm { return h.swarm }

// Peerstore 返回对端存储
func (h *Host) Peerstore() pkgif.Peerstore { return h.peerstore }

// EventBus 返回事件总线
func (h *Host) EventBus() pkgif.EventBus { return h.bus }

// ============================================================================
//                              地址
// ============================================================================

// Addrs 返回本节点对外地址
func (h *Host) Addrs() []multiaddr.Multiaddr {
	return h.addrs.addrs()
}

// SetAddrSource 替换某一来源的地址并刷新地址簿
func (h *Host) SetAddrSource(source string, addrs []multiaddr.Multiaddr) {
	h.addrs.setSource(source, addrs)
	h.RefreshAddrs()
}

// RefreshAddrs 重新计算地址并写入地址簿
func (h *Host) RefreshAddrs() {
	if h.book == nil || h.closed.Load() {
		return
	}
	if h.book.Update(types.AddressSet(h.Addrs())) {
		h.logger.Debug("local addresses updated", "count", len(h.book.Snapshot()))
	}
}

// Listen 在给定地址上监听并刷新地址簿
func (h *Host) Listen(addrs ...multiaddr.Multiaddr) error {
	if err := h.swarm.Listen(addrs...); err != nil {
		return err
	}
	h.RefreshAddrs()
	return nil
}

// ============================================================================
//                              连接与流
// ============================================================================

// Connect 连接到对端（已连接时直接返回）
func (h *Host) Connect(ctx context.Context, info types.AddrInfo) error {
	if info.ID == h.ID() {
		return fmt.Errorf("cannot connect to self")
	}
	if len(info.Addrs) > 0 {
		h.peerstore.AddAddrs(info.ID, info.Addrs, pkgif.TempAddrTTL)
	}
	_, err := h.swarm.DialPeer(ctx, info.ID)
	return err
}

// SetStreamHandler 为指定协议设置流处理器
func (h *Host) SetStreamHandler(pid types.ProtocolID, handler pkgif.StreamHandler) {
	h.mu.Lock()
	h.handlers[pid] = handler
	h.mu.Unlock()
	h.mux.AddHandler(pid, nil)
}

// RemoveStreamHandler 移除指定协议的流处理器
func (h *Host) RemoveStreamHandler(pid types.ProtocolID) {
	h.mux.RemoveHandler(pid)
	h.mu.Lock()
	delete(h.handlers, pid)
	h.mu.Unlock()
}

// Protocols 返回已注册的协议列表
func (h *Host) Protocols() []types.ProtocolID {
	return h.mux.Protocols()
}

// NewStream 打开到对端的流并按顺序协商协议
func (h *Host) NewStream(ctx context.Context, p types.PeerID, pids ...types.ProtocolID) (pkgif.Stream, error) {
	if h.closed.Load() {
		return nil, ErrHostClosed
	}
	if len(pids) == 0 {
		return nil, fmt.Errorf("no protocol given")
	}
	s, err := h.swarm.NewStream(ctx, p)
	if err != nil {
		return nil, err
	}

	if d, ok := ctx.Deadline(); ok {
		_ = s.SetDeadline(d)
	}
	selected, err := mss.SelectOneOf(pids, s)
	_ = s.SetDeadline(time.Time{})
	if err != nil {
		_ = s.Reset()
		return nil, fmt.Errorf("negotiate %v with %s: %w", pids, log.TruncateID(p.String(), 12), err)
	}
	s.SetProtocol(selected)
	h.peerstore.SetProtocols(p, appendProtocol(h.peerstore.GetProtocols(p), selected)...)
	return s, nil
}

func appendProtocol(ps []types.ProtocolID, p types.ProtocolID) []types.ProtocolID {
	for _, x := range ps {
		if x == p {
			return ps
		}
	}
	return append(ps, p)
}

// handleInbound 协商入站流协议并分发
func (h *Host) handleInbound(s pkgif.Stream) {
	_ = s.SetReadDeadline(time.Now().Add(h.negotiationTimeout))
	proto, _, err := h.mux.Negotiate(s)
	_ = s.SetReadDeadline(time.Time{})
	if err != nil {
		h.logger.Debug("protocol negotiation failed",
			"peer", log.TruncateID(s.Conn().RemotePeer().String(), 12),
			"error", err)
		_ = s.Reset()
		return
	}
	s.SetProtocol(proto)

	h.mu.RLock()
	handler := h.handlers[proto]
	h.mu.RUnlock()
	if handler == nil {
		_ = s.Reset()
		return
	}
	handler(s)
}

// Close 关闭主机与底层 Swarm
func (h *Host) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	return h.swarm.Close()
}
