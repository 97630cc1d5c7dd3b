package addrbook

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"

	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// ErrClosed 地址簿已关闭
var ErrClosed = errors.New("address book closed")

// observerBuffer 每个观察者的事件缓冲
const observerBuffer = 8

// Book 本节点地址集合
type Book struct {
	self    types.PeerID
	bus     pkgif.EventBus
	emitter pkgif.Emitter
	logger  *slog.Logger

	mu      sync.Mutex
	current types.AddressSet
	digest  uint64
	closed  bool
}

var _ pkgif.AddressBook = (*Book)(nil)

// New 创建地址簿
func New(self types.PeerID, bus pkgif.EventBus, logger *slog.Logger) (*Book, error) {
	em, err := bus.Emitter(new(types.EvtLocalAddressesChanged), pkgif.Stateful())
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Book{
		self:    self,
		bus:     bus,
		emitter: em,
		logger:  logger,
		digest:  digestOf(nil),
	}, nil
}

// Update 整体替换地址集合
//
// 重复地址被去除，顺序保持。集合未变化时返回 false 且不发出事件。
func (b *Book) Update(addrs types.AddressSet) bool {
	next := types.AddressSet(multiaddr.UniqueAddrs(addrs))
	d := digestOf(next)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || d == b.digest {
		return false
	}

	evt := types.EvtLocalAddressesChanged{
		Peer:    b.self,
		Addrs:   next.Clone(),
		Added:   diff(next, b.current),
		Removed: diff(b.current, next),
	}
	b.current = next
	b.digest = d

	b.logger.Debug("local addresses changed",
		"addrs", next.Strings(),
		"added", len(evt.Added),
		"removed", len(evt.Removed))

	if err := b.emitter.Emit(evt); err != nil {
		b.logger.Warn("emit address change failed", "error", err)
	}
	return true
}

// Snapshot 返回当前地址集合快照
func (b *Book) Snapshot() types.AddressSet {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current.Clone()
}

// OnLocalAddressesChanged 注册地址变化观察者
//
// 观察者立即收到当前集合（若非空），之后按顺序收到每一次变化。
// 返回的 cancel 可重复调用。
func (b *Book) OnLocalAddressesChanged(handler func(types.EvtLocalAddressesChanged)) (cancel func()) {
	sub, err := b.bus.Subscribe(new(types.EvtLocalAddressesChanged), pkgif.BufSize(observerBuffer))
	if err != nil {
		b.logger.Error("subscribe address changes failed", "error", err)
		return func() {}
	}

	go func() {
		for evt := range sub.Out() {
			handler(evt.(types.EvtLocalAddressesChanged))
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { _ = sub.Close() })
	}
}

// Close 关闭地址簿
func (b *Book) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.emitter.Close()
}

// digestOf 集合摘要，用于快速判断是否变化（与顺序相关）
func digestOf(set types.AddressSet) uint64 {
	h := xxhash.New()
	for _, a := range set {
		b := a.Bytes()
		var l [4]byte
		l[0], l[1], l[2], l[3] = byte(len(b)>>24), byte(len(b)>>16), byte(len(b)>>8), byte(len(b))
		_, _ = h.Write(l[:])
		_, _ = h.Write(b)
	}
	return h.Sum64()
}

// diff 返回在 a 中但不在 b 中的地址
func diff(a, b types.AddressSet) []multiaddr.Multiaddr {
	var out []multiaddr.Multiaddr
	for _, x := range a {
		if !b.Contains(x) {
			out = append(out, x)
		}
	}
	return out
}
