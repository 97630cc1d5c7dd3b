package client

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/core/host"
	"github.com/dep2p/go-ucnode/internal/core/metrics"
	"github.com/dep2p/go-ucnode/internal/core/relay/pb"
	"github.com/dep2p/go-ucnode/internal/util/framing"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/protocolids"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// reserveTimeout 单次预约请求超时
const reserveTimeout = 30 * time.Second

// Reservation 持有的一个中继预约
type Reservation struct {
	Relay  types.PeerID
	Expire time.Time
	Addrs  []multiaddr.Multiaddr
	Limit  *pb.Limit
}

// ReservationsOption 选项
type ReservationsOption func(*Reservations)

// WithClock 设置时钟
func WithClock(c clock.Clock) ReservationsOption {
	return func(r *Reservations) { r.clock = c }
}

// Reservations 维持中继预约并公告电路地址
type Reservations struct {
	host    Host
	cfg     config.RelayConfig
	metrics *metrics.Metrics
	clock   clock.Clock
	logger  *slog.Logger

	mu       sync.Mutex
	relays   map[types.PeerID]*Reservation
	inflight map[types.PeerID]struct{}

	trigger chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
	subs    []pkgif.Subscription
}

// NewReservations 创建预约管理器
//
// metrics 可为 nil。
func NewReservations(h Host, cfg config.RelayConfig, m *metrics.Metrics, logger *slog.Logger, opts ...ReservationsOption) *Reservations {
	if logger == nil {
		logger = log.Discard()
	}
	r := &Reservations{
		host:     h,
		cfg:      cfg,
		metrics:  m,
		clock:    clock.New(),
		logger:   logger,
		relays:   make(map[types.PeerID]*Reservation),
		inflight: make(map[types.PeerID]struct{}),
		trigger:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start 开始跟踪可用中继
func (r *Reservations) Start(_ context.Context) error {
	if r.cfg.DiscoverRelays <= 0 {
		return nil
	}
	bus := r.host.EventBus()
	idSub, err := bus.Subscribe(new(types.EvtPeerIdentified))
	if err != nil {
		return fmt.Errorf("relay subscribe: %w", err)
	}
	connSub, err := bus.Subscribe(new(types.EvtPeerConnectedness))
	if err != nil {
		_ = idSub.Close()
		return fmt.Errorf("relay subscribe: %w", err)
	}
	r.subs = []pkgif.Subscription{idSub, connSub}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx, idSub, connSub)
	r.Trigger()
	return nil
}

// Stop 停止并撤下全部电路地址
func (r *Reservations) Stop() error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	for _, s := range r.subs {
		_ = s.Close()
	}
	<-r.done
	r.cancel = nil

	r.mu.Lock()
	r.relays = make(map[types.PeerID]*Reservation)
	r.mu.Unlock()
	r.publish()
	return nil
}

// Trigger 请求尽快补足预约
func (r *Reservations) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Relays 返回当前持有预约的中继
func (r *Reservations) Relays() []types.PeerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.PeerID, 0, len(r.relays))
	for p := range r.relays {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Reservations) loop(ctx context.Context, idSub, connSub pkgif.Subscription) {
	defer close(r.done)

	ticker := r.clock.Ticker(r.cfg.ReservationRefresh.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-idSub.Out():
			if !ok {
				return
			}
			e := evt.(types.EvtPeerIdentified)
			if hasProtocol(e.Protocols, protocolids.RelayHop) {
				r.fill(ctx)
			}
		case evt, ok := <-connSub.Out():
			if !ok {
				return
			}
			e := evt.(types.EvtPeerConnectedness)
			if !e.Connected && r.drop(e.Peer) {
				r.publish()
				r.fill(ctx)
			}
		case <-r.trigger:
			r.fill(ctx)
		case <-ticker.C:
			r.refresh(ctx)
			r.fill(ctx)
		}
	}
}

// fill 在支持 hop 的已连接节点上补足预约
func (r *Reservations) fill(ctx context.Context) {
	want := r.cfg.DiscoverRelays - r.count()
	if want <= 0 {
		return
	}
	changed := false
	for _, p := range r.candidates() {
		if want == 0 || ctx.Err() != nil {
			break
		}
		if _, err := r.reserveAndRecord(ctx, p); err != nil {
			r.logger.Debug("relay reservation failed", "relay", log.TruncateID(p.String(), 12), "error", err)
			continue
		}
		changed = true
		want--
	}
	if changed {
		r.publish()
	}
}

// refresh 续期全部预约，失败的移除
func (r *Reservations) refresh(ctx context.Context) {
	changed := false
	for _, p := range r.Relays() {
		if _, err := r.reserveAndRecord(ctx, p); err != nil {
			r.logger.Debug("relay reservation renewal failed", "relay", log.TruncateID(p.String(), 12), "error", err)
			if r.drop(p) {
				changed = true
			}
		}
	}
	if changed {
		r.publish()
	}
}

func (r *Reservations) candidates() []types.PeerID {
	ps := r.host.Peerstore()
	sw := r.host.Network()

	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.PeerID
	for _, p := range sw.Peers() {
		if _, ok := r.relays[p]; ok {
			continue
		}
		if _, ok := r.inflight[p]; ok {
			continue
		}
		if len(ps.SupportsProtocols(p, protocolids.RelayHop)) == 0 {
			continue
		}
		if !hasDirectConn(sw.ConnsToPeer(p)) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (r *Reservations) reserveAndRecord(ctx context.Context, p types.PeerID) (*Reservation, error) {
	r.mu.Lock()
	r.inflight[p] = struct{}{}
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.inflight, p)
		r.mu.Unlock()
	}()

	rctx, cancel := context.WithTimeout(ctx, reserveTimeout)
	defer cancel()
	res, err := Reserve(rctx, r.host, p)
	if err != nil {
		return nil, err
	}
	if len(res.Addrs) == 0 {
		res.Addrs = r.fallbackAddrs(p)
	}

	r.mu.Lock()
	r.relays[p] = res
	r.mu.Unlock()
	r.logger.Debug("relay reservation held",
		"relay", log.TruncateID(p.String(), 12),
		"expire", res.Expire,
		"addrs", len(res.Addrs))
	return res, nil
}

// fallbackAddrs 中继未告知地址时使用当前连接的远端地址
func (r *Reservations) fallbackAddrs(p types.PeerID) []multiaddr.Multiaddr {
	var out []multiaddr.Multiaddr
	for _, c := range r.host.Network().ConnsToPeer(p) {
		if c.Stat().Transient {
			continue
		}
		if a, err := CircuitAddr(c.RemoteMultiaddr(), p); err == nil {
			out = append(out, a)
		}
	}
	return out
}

func (r *Reservations) drop(p types.PeerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.relays[p]; !ok {
		return false
	}
	delete(r.relays, p)
	return true
}

func (r *Reservations) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.relays)
}

// publish 把全部电路地址写入 host 的 relay 来源
func (r *Reservations) publish() {
	r.mu.Lock()
	relays := make([]types.PeerID, 0, len(r.relays))
	for p := range r.relays {
		relays = append(relays, p)
	}
	sort.Slice(relays, func(i, j int) bool { return relays[i] < relays[j] })
	var addrs []multiaddr.Multiaddr
	for _, p := range relays {
		addrs = append(addrs, r.relays[p].Addrs...)
	}
	n := len(r.relays)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RelayReservations.Set(float64(n))
	}
	r.host.SetAddrSource(host.SourceRelay, multiaddr.UniqueAddrs(addrs))
}

// ============================================================================
//                              RESERVE
// ============================================================================

// Reserve 向中继申请预约
//
// 返回的地址已转换为 <relay-addr>/p2p/<relay>/p2p-circuit 形式。
func Reserve(ctx context.Context, h pkgif.Host, relay types.PeerID) (*Reservation, error) {
	s, err := h.NewStream(ctx, relay, protocolids.RelayHop)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = s.SetDeadline(dl)
	}

	req := &pb.HopMessage{Type: pb.HopReserve}
	if err := framing.WriteMsg(s, req.Marshal()); err != nil {
		_ = s.Reset()
		return nil, err
	}
	b, err := framing.ReadMsg(s, pb.MaxMessageSize)
	if err != nil {
		_ = s.Reset()
		return nil, err
	}
	var resp pb.HopMessage
	if err := resp.Unmarshal(b); err != nil {
		return nil, err
	}
	if resp.Type != pb.HopStatus {
		return nil, ErrUnexpectedMessage
	}
	if resp.Status != pb.StatusOK {
		return nil, &StatusError{Op: "reserve", Status: resp.Status}
	}
	if resp.Reservation == nil {
		return nil, fmt.Errorf("%w: missing reservation", ErrUnexpectedMessage)
	}

	out := &Reservation{
		Relay:  relay,
		Expire: time.Unix(int64(resp.Reservation.Expire), 0),
		Limit:  resp.Limit,
	}
	for _, a := range resp.Reservation.Addrs {
		if a.HasProtocol(multiaddr.P_CIRCUIT) {
			continue
		}
		if ca, err := CircuitAddr(a, relay); err == nil {
			out.Addrs = append(out.Addrs, ca)
		}
	}
	return out, nil
}

func hasProtocol(ps []types.ProtocolID, p types.ProtocolID) bool {
	for _, x := range ps {
		if x == p {
			return true
		}
	}
	return false
}

func hasDirectConn(conns []pkgif.Conn) bool {
	for _, c := range conns {
		if !c.Stat().Transient {
			return true
		}
	}
	return false
}
