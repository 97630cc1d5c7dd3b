package peerstore

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"

	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// ErrKeyMismatch 公钥与节点 ID 不匹配
var ErrKeyMismatch = errors.New("public key does not match peer id")

// DefaultMaxPeers 默认对端记录上限
const DefaultMaxPeers = 4096

type addrEntry struct {
	addr   multiaddr.Multiaddr
	expiry time.Time
}

type peerRecord struct {
	addrs  []addrEntry
	pubKey crypto.PublicKey
	protos []types.ProtocolID
}

// Peerstore 内存对端存储
type Peerstore struct {
	mu      sync.Mutex
	peers   *lru.Cache[types.PeerID, *peerRecord]
	clock   clock.Clock
	logger  *slog.Logger
	emitter pkgif.Emitter
}

var _ pkgif.Peerstore = (*Peerstore)(nil)

// Option 构造选项
type Option func(*Peerstore)

// WithClock 设置时钟（测试用）
func WithClock(c clock.Clock) Option {
	return func(ps *Peerstore) { ps.clock = c }
}

// WithLogger 设置日志
func WithLogger(l *slog.Logger) Option {
	return func(ps *Peerstore) { ps.logger = l }
}

// WithEventBus 地址变化时发出 EvtPeerAddrsChanged
func WithEventBus(bus pkgif.EventBus) Option {
	return func(ps *Peerstore) {
		em, err := bus.Emitter(new(types.EvtPeerAddrsChanged))
		if err == nil {
			ps.emitter = em
		}
	}
}

// New 创建 Peerstore
func New(maxPeers int, opts ...Option) (*Peerstore, error) {
	if maxPeers <= 0 {
		maxPeers = DefaultMaxPeers
	}
	cache, err := lru.New[types.PeerID, *peerRecord](maxPeers)
	if err != nil {
		return nil, err
	}
	ps := &Peerstore{
		peers:  cache,
		clock:  clock.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(ps)
	}
	return ps, nil
}

func (ps *Peerstore) record(p types.PeerID) *peerRecord {
	if r, ok := ps.peers.Get(p); ok {
		return r
	}
	r := &peerRecord{}
	ps.peers.Add(p, r)
	return r
}

// AddAddrs 追加地址，已有地址只延长不缩短有效期
func (ps *Peerstore) AddAddrs(p types.PeerID, addrs []multiaddr.Multiaddr, ttl time.Duration) {
	if ttl <= 0 || len(addrs) == 0 {
		return
	}
	ps.mu.Lock()
	r := ps.record(p)
	now := ps.clock.Now()
	r.gc(now)
	exp := now.Add(ttl)
	changed := false
	for _, a := range addrs {
		if a == nil {
			continue
		}
		if i := r.index(a); i >= 0 {
			if exp.After(r.addrs[i].expiry) {
				r.addrs[i].expiry = exp
			}
			continue
		}
		r.addrs = append(r.addrs, addrEntry{addr: a, expiry: exp})
		changed = true
	}
	current := r.list()
	ps.mu.Unlock()

	if changed {
		ps.notify(p, current)
	}
}

// SetAddrs 替换地址；ttl 为 0 时清空
func (ps *Peerstore) SetAddrs(p types.PeerID, addrs []multiaddr.Multiaddr, ttl time.Duration) {
	ps.mu.Lock()
	r := ps.record(p)
	before := r.list()
	r.addrs = r.addrs[:0]
	if ttl > 0 {
		exp := ps.clock.Now().Add(ttl)
		for _, a := range multiaddr.UniqueAddrs(addrs) {
			r.addrs = append(r.addrs, addrEntry{addr: a, expiry: exp})
		}
	}
	current := r.list()
	ps.mu.Unlock()

	if !types.AddressSet(before).Equal(current) {
		ps.notify(p, current)
	}
}

// Addrs 返回未过期地址
func (ps *Peerstore) Addrs(p types.PeerID) []multiaddr.Multiaddr {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	r, ok := ps.peers.Get(p)
	if !ok {
		return nil
	}
	r.gc(ps.clock.Now())
	return r.list()
}

// ClearAddrs 清空地址
func (ps *Peerstore) ClearAddrs(p types.PeerID) {
	ps.SetAddrs(p, nil, 0)
}

// AddPubKey 记录公钥
func (ps *Peerstore) AddPubKey(p types.PeerID, pub crypto.PublicKey) error {
	if !crypto.PeerIDMatchesPublicKey(p, pub) {
		return ErrKeyMismatch
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.record(p).pubKey = pub
	return nil
}

// PubKey 返回公钥
func (ps *Peerstore) PubKey(p types.PeerID) crypto.PublicKey {
	ps.mu.Lock()
	r, ok := ps.peers.Get(p)
	ps.mu.Unlock()
	if ok && r.pubKey != nil {
		return r.pubKey
	}
	pub, err := crypto.PublicKeyFromPeerID(p)
	if err != nil {
		return nil
	}
	return pub
}

// SetProtocols 替换对端支持的协议
func (ps *Peerstore) SetProtocols(p types.PeerID, protos ...types.ProtocolID) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.record(p).protos = append([]types.ProtocolID(nil), protos...)
}

// GetProtocols 返回对端支持的协议
func (ps *Peerstore) GetProtocols(p types.PeerID) []types.ProtocolID {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	r, ok := ps.peers.Get(p)
	if !ok {
		return nil
	}
	return append([]types.ProtocolID(nil), r.protos...)
}

// SupportsProtocols 返回 protos 中对端支持的子集
func (ps *Peerstore) SupportsProtocols(p types.PeerID, protos ...types.ProtocolID) []types.ProtocolID {
	known := ps.GetProtocols(p)
	var out []types.ProtocolID
	for _, want := range protos {
		for _, have := range known {
			if want == have {
				out = append(out, want)
				break
			}
		}
	}
	return out
}

// PeerInfo 返回对端地址信息
func (ps *Peerstore) PeerInfo(p types.PeerID) types.AddrInfo {
	return types.AddrInfo{ID: p, Addrs: ps.Addrs(p)}
}

// Peers 返回已知对端
func (ps *Peerstore) Peers() []types.PeerID {
	return ps.peers.Keys()
}

// RemovePeer 删除对端全部信息
func (ps *Peerstore) RemovePeer(p types.PeerID) {
	ps.peers.Remove(p)
}

// Close 关闭
func (ps *Peerstore) Close() error {
	if ps.emitter != nil {
		return ps.emitter.Close()
	}
	return nil
}

func (ps *Peerstore) notify(p types.PeerID, addrs []multiaddr.Multiaddr) {
	ps.logger.Debug("changed multiaddrs",
		"peer", p.String(),
		"multiaddrs", multiaddr.Strings(addrs))
	if ps.emitter != nil {
		_ = ps.emitter.Emit(types.EvtPeerAddrsChanged{Peer: p, Addrs: addrs})
	}
}

func (r *peerRecord) index(a multiaddr.Multiaddr) int {
	for i, e := range r.addrs {
		if e.addr.Equal(a) {
			return i
		}
	}
	return -1
}

func (r *peerRecord) gc(now time.Time) {
	kept := r.addrs[:0]
	for _, e := range r.addrs {
		if now.Before(e.expiry) {
			kept = append(kept, e)
		}
	}
	r.addrs = kept
}

func (r *peerRecord) list() []multiaddr.Multiaddr {
	if len(r.addrs) == 0 {
		return nil
	}
	out := make([]multiaddr.Multiaddr, len(r.addrs))
	for i, e := range r.addrs {
		out[i] = e.addr
	}
	return out
}
