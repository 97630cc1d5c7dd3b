package dht

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/semaphore"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/core/host"
	"github.com/dep2p/go-ucnode/internal/util/framing"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/protocolids"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// streamIdleTimeout 入站流空闲超时
const streamIdleTimeout = time.Minute

// ============================================================================
//                              DHT 实现
// ============================================================================

// DHT Kademlia 节点路由
type DHT struct {
	host     pkgif.Host
	cfg      config.DHTConfig
	protocol types.ProtocolID
	rt       *RoutingTable
	outbound *semaphore.Weighted
	clock    clock.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	sub     pkgif.Subscription
	wg      sync.WaitGroup
}

var _ pkgif.Routing = (*DHT)(nil)

// Option DHT 选项
type Option func(*DHT)

// WithClock 设置时钟（测试使用）
func WithClock(c clock.Clock) Option {
	return func(d *DHT) { d.clock = c }
}

// New 创建 DHT
func New(h pkgif.Host, cfg config.DHTConfig, logger *slog.Logger, opts ...Option) *DHT {
	if logger == nil {
		logger = log.Discard()
	}
	d := &DHT{
		host:     h,
		cfg:      cfg,
		protocol: protocolids.DHT(cfg.ProtocolPrefix),
		rt:       NewRoutingTable(h.ID(), cfg.BucketSize),
		outbound: semaphore.NewWeighted(int64(max(cfg.MaxOutboundStreams, 1))),
		clock:    clock.New(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name 返回 "dht"
func (d *DHT) Name() string {
	return "dht"
}

// Protocol 返回 kad 协议 ID
func (d *DHT) Protocol() types.ProtocolID {
	return d.protocol
}

// RoutingTable 返回路由表
func (d *DHT) RoutingTable() *RoutingTable {
	return d.rt
}

// RoutingTableSize 返回路由表中的节点数
func (d *DHT) RoutingTableSize() int {
	return d.rt.Size()
}

// Start 启动 DHT
//
// 服务端模式注册协议处理器；两种模式都监听 identify 结果维护路由表，
// 并按 RefreshInterval 周期刷新。
func (d *DHT) Start(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return ErrAlreadyStarted
	}

	sub, err := d.host.EventBus().Subscribe(new(types.EvtPeerIdentified))
	if err != nil {
		return err
	}
	if !d.cfg.ClientMode {
		d.host.SetStreamHandler(d.protocol, host.LimitHandler(d.cfg.MaxInboundStreams, d.handleStream))
	}

	// 已完成 identify 的连接
	for _, p := range d.host.Network().Peers() {
		if len(d.host.Peerstore().SupportsProtocols(p, d.protocol)) > 0 {
			d.rt.Add(p)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.sub = sub
	d.cancel = cancel
	d.started = true

	d.wg.Add(2)
	go d.watchIdentify(sub)
	go d.refreshLoop(ctx)

	d.logger.Debug("dht started",
		"protocol", d.protocol,
		"client_mode", d.cfg.ClientMode,
		"routing_table", d.rt.Size())
	return nil
}

// Stop 停止 DHT
func (d *DHT) Stop() error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return ErrNotStarted
	}
	d.started = false
	cancel, sub := d.cancel, d.sub
	d.cancel, d.sub = nil, nil
	d.mu.Unlock()

	if !d.cfg.ClientMode {
		d.host.RemoveStreamHandler(d.protocol)
	}
	cancel()
	err := sub.Close()
	d.wg.Wait()
	return err
}

func (d *DHT) watchIdentify(sub pkgif.Subscription) {
	defer d.wg.Done()
	for e := range sub.Out() {
		evt, ok := e.(types.EvtPeerIdentified)
		if !ok {
			continue
		}
		if supports(evt.Protocols, d.protocol) {
			if d.rt.Add(evt.Peer) {
				d.logger.Debug("peer added to routing table", "peer", log.TruncateID(evt.Peer.String(), 12))
			}
		} else {
			d.rt.Remove(evt.Peer)
		}
	}
}

func (d *DHT) refreshLoop(ctx context.Context) {
	defer d.wg.Done()
	interval := d.cfg.RefreshInterval.Duration()
	if interval <= 0 {
		return
	}
	ticker := d.clock.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := d.Bootstrap(ctx); err != nil && !errors.Is(err, ErrEmptyRoutingTable) {
				d.logger.Debug("routing table refresh failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Bootstrap 查找离自己最近的节点以填充路由表
func (d *DHT) Bootstrap(ctx context.Context) error {
	_, err := d.GetClosestPeers(ctx, d.host.ID().Bytes())
	return err
}

// GetClosestPeers 迭代查找距 key 最近的节点
func (d *DHT) GetClosestPeers(ctx context.Context, key []byte) ([]types.PeerID, error) {
	return d.lookup(ctx, key, nil)
}

// FindPeer 查找节点地址
//
// 已连接时直接返回 peerstore 中的地址。
func (d *DHT) FindPeer(ctx context.Context, id types.PeerID) (types.AddrInfo, error) {
	if d.host.Network().Connected(id) {
		return d.host.Peerstore().PeerInfo(id), nil
	}

	var found *PeerInfo
	var mu sync.Mutex
	_, err := d.lookup(ctx, id.Bytes(), func(p PeerInfo) bool {
		if p.ID != id || len(p.Addrs) == 0 {
			return false
		}
		mu.Lock()
		found = &p
		mu.Unlock()
		return true
	})
	mu.Lock()
	defer mu.Unlock()
	if found != nil {
		return types.AddrInfo{ID: found.ID, Addrs: found.Addrs}, nil
	}
	if err != nil {
		return types.AddrInfo{}, err
	}
	return types.AddrInfo{}, ErrNotFound
}

// ============================================================================
//                              协议处理
// ============================================================================

// handleStream 响应 FIND_NODE 与 PING，同一条流上可以有多个请求
func (d *DHT) handleStream(s pkgif.Stream) {
	defer s.Close()
	remote := s.Conn().RemotePeer()

	for {
		_ = s.SetReadDeadline(time.Now().Add(streamIdleTimeout))
		b, err := framing.ReadMsg(s, maxMessageSize)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				_ = s.Reset()
			}
			return
		}
		var req Message
		if err := req.Unmarshal(b); err != nil {
			_ = s.Reset()
			return
		}

		var resp *Message
		switch req.Type {
		case MessageFindNode:
			resp = &Message{Type: MessageFindNode, Key: req.Key, CloserPeers: d.closerPeerInfos(req.Key, remote)}
		case MessagePing:
			resp = &Message{Type: MessagePing}
		default:
			d.logger.Debug("unsupported dht request", "type", req.Type, "peer", log.TruncateID(remote.String(), 12))
			_ = s.Reset()
			return
		}
		if err := framing.WriteMsg(s, resp.Marshal()); err != nil {
			_ = s.Reset()
			return
		}
	}
}

// closerPeerInfos 路由表中距 key 最近的节点（不含请求方）
func (d *DHT) closerPeerInfos(key []byte, requester types.PeerID) []PeerInfo {
	peers := d.rt.NearestPeers(KeyForBytes(key), d.cfg.BucketSize+1)
	out := make([]PeerInfo, 0, len(peers))
	for _, p := range peers {
		if p == requester {
			continue
		}
		info := PeerInfo{ID: p, Addrs: d.host.Peerstore().Addrs(p), Connection: NotConnected}
		if d.host.Network().Connected(p) {
			info.Connection = Connected
		}
		out = append(out, info)
		if len(out) == d.cfg.BucketSize {
			break
		}
	}
	return out
}

func supports(protos []types.ProtocolID, want types.ProtocolID) bool {
	for _, p := range protos {
		if p == want {
			return true
		}
	}
	return false
}
