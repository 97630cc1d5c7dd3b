package nat

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/core/host"
	"github.com/dep2p/go-ucnode/internal/core/nat/stun"
	"github.com/dep2p/go-ucnode/internal/util/framing"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/protocolids"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// ============================================================================
//                          AutoNAT 客户端
// ============================================================================

// maxConfidence 状态翻转前需要抵消的连续相反结果数
const maxConfidence = 3

// probeTimeout 单个对端的探测超时
const probeTimeout = DialBackTimeout + 5*time.Second

// Host AutoNAT 需要的主机能力
type Host interface {
	pkgif.Host
	SetAddrSource(source string, addrs []multiaddr.Multiaddr)
}

// ExternalAddrResolver 返回本机的外部 UDP 地址
type ExternalAddrResolver interface {
	GetExternalAddr(ctx context.Context) (*net.UDPAddr, error)
}

var _ ExternalAddrResolver = (*stun.Client)(nil)

// AutoNAT 可达性探测客户端
//
// 周期性地请求已连接且支持 AutoNAT 的对端拨回本节点地址，
// 根据结果维护 Unknown/Public/Private 状态。
type AutoNAT struct {
	host   Host
	cfg    config.AutoNATConfig
	stun   ExternalAddrResolver
	clock  clock.Clock
	logger *slog.Logger

	// addrs 返回需要验证的地址，默认取 host.Addrs
	addrs func() []multiaddr.Multiaddr

	emitter pkgif.Emitter

	mu           sync.Mutex
	status       types.Reachability
	confidence   int
	lastAddr     multiaddr.Multiaddr
	natAddrs     []multiaddr.Multiaddr
	started      bool
	cancel       context.CancelFunc
	done         chan struct{}
	probeTrigger chan struct{}
}

// ClientOption 客户端选项
type ClientOption func(*AutoNAT)

// WithClock 设置时钟
func WithClock(c clock.Clock) ClientOption {
	return func(a *AutoNAT) { a.clock = c }
}

// WithAddrsFunc 设置待验证地址来源
func WithAddrsFunc(fn func() []multiaddr.Multiaddr) ClientOption {
	return func(a *AutoNAT) { a.addrs = fn }
}

// WithExternalAddrResolver 设置外部地址解析器（为 nil 时不做 STUN 查询）
func WithExternalAddrResolver(r ExternalAddrResolver) ClientOption {
	return func(a *AutoNAT) { a.stun = r }
}

// NewAutoNAT 创建 AutoNAT 客户端
func NewAutoNAT(h Host, cfg config.AutoNATConfig, logger *slog.Logger, opts ...ClientOption) (*AutoNAT, error) {
	if logger == nil {
		logger = log.Discard()
	}
	em, err := h.EventBus().Emitter(new(types.EvtLocalReachabilityChanged), pkgif.Stateful())
	if err != nil {
		return nil, fmt.Errorf("autonat emitter: %w", err)
	}
	a := &AutoNAT{
		host:         h,
		cfg:          cfg,
		clock:        clock.New(),
		logger:       logger,
		addrs:        h.Addrs,
		emitter:      em,
		probeTrigger: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Start 启动后台探测循环
func (a *AutoNAT) Start(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return ErrAlreadyStarted
	}
	a.started = true

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.loop(ctx)
	return nil
}

// Stop 停止探测并关闭发射器
func (a *AutoNAT) Stop() error {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return ErrNotStarted
	}
	a.started = false
	cancel, done := a.cancel, a.done
	a.mu.Unlock()

	cancel()
	<-done
	return a.emitter.Close()
}

// Status 返回当前可达性
func (a *AutoNAT) Status() types.Reachability {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// PublicAddr 返回最近一次拨回成功的地址
func (a *AutoNAT) PublicAddr() multiaddr.Multiaddr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastAddr
}

// TriggerProbe 请求尽快进行一轮探测
func (a *AutoNAT) TriggerProbe() {
	select {
	case a.probeTrigger <- struct{}{}:
	default:
	}
}

func (a *AutoNAT) loop(ctx context.Context) {
	defer close(a.done)

	timer := a.clock.Timer(a.cfg.StartupDelay.Duration())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-a.probeTrigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		if err := a.Probe(ctx); err != nil && ctx.Err() == nil {
			a.logger.Debug("autonat probe skipped", "error", err)
		}
		timer.Reset(a.cfg.RefreshInterval.Duration())
	}
}

// Probe 同步执行一轮探测
//
// 先刷新 STUN 候选地址，再依次询问最多 MaxProbePeers 个对端。
// 没有可用对端时返回 ErrNoPeers，状态不变。
func (a *AutoNAT) Probe(ctx context.Context) error {
	a.refreshExternalAddrs(ctx)

	addrs := a.candidateAddrs()
	if len(addrs) == 0 {
		return ErrNoAddresses
	}
	peers := a.probePeers()
	if len(peers) == 0 {
		return ErrNoPeers
	}

	for _, p := range peers {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		addr, err := a.dialRequest(pctx, p, addrs)
		cancel()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.recordResult(p, addr, err)
	}
	return nil
}

// candidateAddrs 待验证的直连地址
func (a *AutoNAT) candidateAddrs() []multiaddr.Multiaddr {
	var out []multiaddr.Multiaddr
	for _, addr := range a.addrs() {
		if addr.HasProtocol(multiaddr.P_CIRCUIT) {
			continue
		}
		out = append(out, addr)
	}
	return out
}

// probePeers 随机选取支持 AutoNAT 的已连接对端
func (a *AutoNAT) probePeers() []types.PeerID {
	ps := a.host.Peerstore()
	var candidates []types.PeerID
	for _, p := range a.host.Network().Peers() {
		if len(ps.SupportsProtocols(p, protocolids.AutoNAT)) == 0 {
			continue
		}
		if !hasDirectConn(a.host.Network().ConnsToPeer(p)) {
			continue
		}
		candidates = append(candidates, p)
	}
	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if n := a.cfg.MaxProbePeers; n > 0 && len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

// hasDirectConn 中继连接上的观测地址是中继的，不能用于判断
func hasDirectConn(conns []pkgif.Conn) bool {
	for _, c := range conns {
		if !c.Stat().Transient {
			return true
		}
	}
	return false
}

// dialRequest 请求对端拨回，成功时返回对端确认的地址
func (a *AutoNAT) dialRequest(ctx context.Context, p types.PeerID, addrs []multiaddr.Multiaddr) (multiaddr.Multiaddr, error) {
	s, err := a.host.NewStream(ctx, p, protocolids.AutoNAT)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = s.SetDeadline(dl)
	}

	req := &message{
		Type: typeDial,
		Dial: &dialRequest{Peer: a.host.ID(), Addrs: addrs},
	}
	if err := framing.WriteMsg(s, req.marshal()); err != nil {
		_ = s.Reset()
		return nil, err
	}
	b, err := framing.ReadMsg(s, maxMessageSize)
	if err != nil {
		_ = s.Reset()
		return nil, err
	}
	var resp message
	if err := resp.unmarshal(b); err != nil {
		return nil, err
	}
	if resp.Type != typeDialResponse || resp.Response == nil {
		return nil, ErrBadMessage
	}
	if resp.Response.Status != StatusOK {
		return nil, &ResponseError{Status: resp.Response.Status, Text: resp.Response.Text}
	}
	return resp.Response.Addr, nil
}

// recordResult 按结果调整置信度，必要时翻转状态
//
// 拒绝服务和网络错误不计入，只有明确的 OK 或 E_DIAL_ERROR 改变状态。
func (a *AutoNAT) recordResult(p types.PeerID, addr multiaddr.Multiaddr, err error) {
	var observed types.Reachability
	switch {
	case err == nil:
		observed = types.ReachabilityPublic
	default:
		re, ok := err.(*ResponseError)
		if !ok || re.Status != StatusDialError {
			a.logger.Debug("autonat probe inconclusive",
				"peer", log.TruncateID(p.String(), 12), "error", err)
			return
		}
		observed = types.ReachabilityPrivate
	}

	a.mu.Lock()
	changed := false
	switch {
	case a.status == observed:
		if a.confidence < maxConfidence {
			a.confidence++
		}
	case a.status == types.ReachabilityUnknown || a.confidence == 0:
		a.status = observed
		a.confidence = 0
		changed = true
	default:
		a.confidence--
	}
	if observed == types.ReachabilityPublic {
		a.lastAddr = addr
	}
	status := a.status
	a.mu.Unlock()

	if !changed {
		return
	}
	a.logger.Info("reachability changed", "status", status.String())
	if status == types.ReachabilityPrivate {
		a.setNATAddrs(nil)
	}
	if err := a.emitter.Emit(types.EvtLocalReachabilityChanged{Reachability: status}); err != nil {
		a.logger.Warn("emit reachability failed", "error", err)
	}
}

// ============================================================================
//                          STUN 候选地址
// ============================================================================

// refreshExternalAddrs 用 STUN 得到的外部 IP 替换监听地址中的 IP
//
// 结果只作为候选地址参与拨回验证；确认私网后撤下。
func (a *AutoNAT) refreshExternalAddrs(ctx context.Context) {
	if a.stun == nil || a.Status() == types.ReachabilityPrivate {
		return
	}
	ext, err := a.stun.GetExternalAddr(ctx)
	if err != nil {
		a.logger.Debug("stun lookup failed", "error", err)
		return
	}
	var out []multiaddr.Multiaddr
	for _, l := range a.host.Network().ListenAddresses() {
		if m := replaceIP(l, ext.IP); m != nil {
			out = append(out, m)
		}
	}
	a.setNATAddrs(out)
}

func (a *AutoNAT) setNATAddrs(addrs []multiaddr.Multiaddr) {
	a.mu.Lock()
	if len(addrs) == 0 && len(a.natAddrs) == 0 {
		a.mu.Unlock()
		return
	}
	a.natAddrs = addrs
	a.mu.Unlock()
	a.host.SetAddrSource(host.SourceNAT, addrs)
}

// replaceIP 替换 /ip4 监听地址的 IP 部分，非 UDP 或地址族不符时返回 nil
func replaceIP(listen multiaddr.Multiaddr, ip net.IP) multiaddr.Multiaddr {
	ip4 := ip.To4()
	if ip4 == nil {
		return nil
	}
	if _, err := listen.ValueForProtocol(multiaddr.P_IP4); err != nil {
		return nil
	}
	if !listen.HasProtocol(multiaddr.P_UDP) {
		return nil
	}
	parts := multiaddr.Split(listen)
	head, err := multiaddr.NewMultiaddr("/ip4/" + ip4.String())
	if err != nil {
		return nil
	}
	return multiaddr.Join(append([]multiaddr.Multiaddr{head}, parts[1:]...)...)
}
