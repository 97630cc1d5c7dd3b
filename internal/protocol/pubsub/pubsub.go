package pubsub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/core/metrics"
	"github.com/dep2p/go-ucnode/internal/core/msgid"
	"github.com/dep2p/go-ucnode/internal/util/framing"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/protocolids"
	"github.com/dep2p/go-ucnode/pkg/types"
)

const (
	// peerQueueSize 每个对端的发送队列长度
	peerQueueSize = 64

	// openStreamTimeout 打开 gossip 流的超时
	openStreamTimeout = 10 * time.Second
)

// ============================================================================
//                              PubSub 实现
// ============================================================================

// PubSub floodsub 风格的主题消息传播
type PubSub struct {
	host    pkgif.Host
	priv    crypto.PrivateKey
	cfg     config.PubSubConfig
	idFn    msgid.Func
	metrics *metrics.Metrics
	clock   clock.Clock
	logger  *slog.Logger

	seenMu sync.Mutex
	seen   *expirable.LRU[string, struct{}]
	seqno  atomic.Uint64

	mu          sync.Mutex
	subs        map[string]map[*subscription]struct{}
	topics      map[string]map[types.PeerID]struct{}
	peers       map[types.PeerID]*peerState
	unsupported map[types.PeerID]struct{}
	started     bool
	closed      bool
	ctx         context.Context
	cancel      context.CancelFunc
	evtSub      pkgif.Subscription
	wg          sync.WaitGroup
}

var _ pkgif.GossipChannel = (*PubSub)(nil)

// Option PubSub 选项
type Option func(*PubSub)

// WithMessageIDFn 替换消息标识函数
func WithMessageIDFn(fn msgid.Func) Option {
	return func(ps *PubSub) {
		if fn != nil {
			ps.idFn = fn
		}
	}
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(ps *PubSub) { ps.metrics = m }
}

// WithClock 设置时钟（测试使用）
func WithClock(c clock.Clock) Option {
	return func(ps *PubSub) { ps.clock = c }
}

// New 创建 PubSub
//
// 标识函数默认按 cfg.MessageIDFn 选择，名称未知时使用 msgid.Default。
func New(h pkgif.Host, priv crypto.PrivateKey, cfg config.PubSubConfig, logger *slog.Logger, opts ...Option) *PubSub {
	if logger == nil {
		logger = log.Discard()
	}
	idFn, ok := msgid.ByName(cfg.MessageIDFn)
	if !ok {
		idFn = msgid.Default
	}
	ps := &PubSub{
		host:        h,
		priv:        priv,
		cfg:         cfg,
		idFn:        idFn,
		clock:       clock.New(),
		logger:      logger,
		seen:        expirable.NewLRU[string, struct{}](max(cfg.SeenCacheSize, 1), nil, cfg.SeenTTL.Duration()),
		subs:        make(map[string]map[*subscription]struct{}),
		topics:      make(map[string]map[types.PeerID]struct{}),
		peers:       make(map[types.PeerID]*peerState),
		unsupported: make(map[types.PeerID]struct{}),
	}
	for _, opt := range opts {
		opt(ps)
	}
	ps.seqno.Store(uint64(ps.clock.Now().UnixNano()))
	return ps
}

// Start 启动服务
//
// 注册协议处理器，为已连接的对端打开 gossip 流，并监听后续连接变化。
func (ps *PubSub) Start(_ context.Context) error {
	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return ErrClosed
	}
	if ps.started {
		ps.mu.Unlock()
		return ErrAlreadyStarted
	}
	sub, err := ps.host.EventBus().Subscribe(new(types.EvtPeerConnectedness))
	if err != nil {
		ps.mu.Unlock()
		return err
	}
	ps.host.SetStreamHandler(protocolids.GossipSub, ps.handleStream)
	ps.ctx, ps.cancel = context.WithCancel(context.Background())
	ps.evtSub = sub
	ps.started = true

	ps.wg.Add(2)
	go ps.watchPeers(sub)
	go ps.heartbeat()
	ps.mu.Unlock()

	for _, p := range ps.host.Network().Peers() {
		ps.addPeer(p)
	}
	ps.logger.Debug("pubsub started",
		"protocol", protocolids.GossipSub,
		"signature_policy", ps.cfg.SignaturePolicy)
	return nil
}

// Close 关闭服务并取消全部订阅
func (ps *PubSub) Close() error {
	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return nil
	}
	ps.closed = true
	started := ps.started
	ps.started = false

	var subs []*subscription
	for _, set := range ps.subs {
		for s := range set {
			subs = append(subs, s)
		}
	}
	peers := make([]*peerState, 0, len(ps.peers))
	for _, st := range ps.peers {
		peers = append(peers, st)
	}
	ps.subs = make(map[string]map[*subscription]struct{})
	ps.topics = make(map[string]map[types.PeerID]struct{})
	ps.peers = make(map[types.PeerID]*peerState)
	cancel, evtSub := ps.cancel, ps.evtSub
	ps.mu.Unlock()

	for _, s := range subs {
		s.cancelled()
	}
	for _, st := range peers {
		st.stop()
	}
	if !started {
		return nil
	}

	ps.host.RemoveStreamHandler(protocolids.GossipSub)
	cancel()
	err := evtSub.Close()
	ps.wg.Wait()
	return err
}

// ============================================================================
//                              订阅与发布
// ============================================================================

// Subscribe 订阅主题
//
// 同一主题可以有多个本地订阅，第一个订阅建立时向对端通告。
func (ps *PubSub) Subscribe(topic string) (pkgif.TopicSubscription, error) {
	if topic == "" {
		return nil, ErrInvalidTopic
	}

	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return nil, ErrClosed
	}
	s := newSubscription(ps, topic)
	set, ok := ps.subs[topic]
	if !ok {
		set = make(map[*subscription]struct{})
		ps.subs[topic] = set
	}
	set[s] = struct{}{}
	ps.mu.Unlock()

	if !ok {
		ps.announce(topic, true)
		ps.logger.Debug("subscribed", "topic", topic)
	}
	return s, nil
}

func (ps *PubSub) removeSubscription(s *subscription) {
	ps.mu.Lock()
	set, ok := ps.subs[s.topic]
	if !ok {
		ps.mu.Unlock()
		return
	}
	delete(set, s)
	last := len(set) == 0
	if last {
		delete(ps.subs, s.topic)
	}
	ps.mu.Unlock()

	if last {
		ps.announce(s.topic, false)
		ps.logger.Debug("unsubscribed", "topic", s.topic)
	}
}

// Publish 向主题发布消息
//
// 消息同时投递给本地订阅。没有订阅对端时按 AllowPublishToZeroPeers
// 决定是否返回 ErrNoPeers；标识已见时按 IgnoreDuplicatePublishError
// 决定是否返回 ErrDuplicateMessage。
func (ps *PubSub) Publish(ctx context.Context, topic string, data []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	ps.mu.Lock()
	closed, started := ps.closed, ps.started
	ps.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if !started {
		return ErrNotStarted
	}

	self := ps.host.ID()
	msg := &types.GossipMessage{
		From:         self,
		Data:         append([]byte(nil), data...),
		Seqno:        ps.seqno.Add(1),
		Topic:        topic,
		ReceivedFrom: self,
	}
	if ps.cfg.SignaturePolicy != config.SignaturePolicyStrictNoSign {
		if err := signMessage(ps.priv, msg); err != nil {
			return fmt.Errorf("sign message: %w", err)
		}
	}
	frame := (&rpc{Publish: []*types.GossipMessage{msg}}).marshal()
	if len(frame) > ps.cfg.MaxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(frame), ps.cfg.MaxMessageSize)
	}

	id := ps.idFn(msg).Key()
	if ps.isSeen(id) {
		return ps.duplicatePublish(topic)
	}
	targets := ps.topicPeers(topic, "", "")
	if len(targets) == 0 && !ps.cfg.AllowPublishToZeroPeers {
		return fmt.Errorf("%w: %s", ErrNoPeers, topic)
	}
	if !ps.markSeen(id) {
		return ps.duplicatePublish(topic)
	}

	ps.inc(publishedCounter, topic)
	ps.deliver(msg)

	// 先非阻塞入队，队列满的对端再等待 ctx，所有对端都会被尝试
	var errs error
	for _, st := range targets {
		if st.send(frame) {
			continue
		}
		if err := st.sendCtx(ctx, frame); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("peer %s: %w", log.TruncateID(st.id.String(), 12), err))
		}
	}
	ps.logger.Debug("published message",
		"topic", topic,
		"seqno", msg.Seqno,
		"peers", len(targets),
		"failed", len(multierr.Errors(errs)))
	return errs
}

func (ps *PubSub) duplicatePublish(topic string) error {
	ps.inc(duplicateCounter, topic)
	if ps.cfg.IgnoreDuplicatePublishError {
		return nil
	}
	return ErrDuplicateMessage
}

// GetTopics 返回本地已订阅主题（排序）
func (ps *PubSub) GetTopics() []string {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make([]string, 0, len(ps.subs))
	for t := range ps.subs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ListPeers 返回订阅了主题的对端（排序）
func (ps *PubSub) ListPeers(topic string) []types.PeerID {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make([]types.PeerID, 0, len(ps.topics[topic]))
	for p := range ps.topics[topic] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ============================================================================
//                              接收与转发
// ============================================================================

func (ps *PubSub) handleStream(s pkgif.Stream) {
	from := s.Conn().RemotePeer()

	// 入站流说明对端支持协议
	ps.mu.Lock()
	delete(ps.unsupported, from)
	ps.mu.Unlock()
	ps.addPeer(from)

	r := framing.NewReader(s, ps.cfg.MaxMessageSize)
	for {
		b, err := r.ReadMsg()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				ps.logger.Debug("gossip stream read failed",
					"peer", log.TruncateID(from.String(), 12),
					"error", err)
				_ = s.Reset()
				return
			}
			_ = s.Close()
			return
		}
		var m rpc
		if err := m.unmarshal(b); err != nil {
			ps.logger.Debug("malformed gossip rpc",
				"peer", log.TruncateID(from.String(), 12),
				"error", err)
			_ = s.Reset()
			return
		}
		ps.handleRPC(from, &m)
	}
}

func (ps *PubSub) handleRPC(from types.PeerID, m *rpc) {
	if len(m.Subscriptions) > 0 {
		ps.mu.Lock()
		for _, so := range m.Subscriptions {
			if so.Topic == "" {
				continue
			}
			set := ps.topics[so.Topic]
			if so.Subscribe {
				if set == nil {
					set = make(map[types.PeerID]struct{})
					ps.topics[so.Topic] = set
				}
				set[from] = struct{}{}
			} else if set != nil {
				delete(set, from)
				if len(set) == 0 {
					delete(ps.topics, so.Topic)
				}
			}
		}
		ps.mu.Unlock()
	}

	for _, msg := range m.Publish {
		ps.handleMessage(from, msg)
	}
}

func (ps *PubSub) handleMessage(from types.PeerID, msg *types.GossipMessage) {
	msg.ReceivedFrom = from

	ps.mu.Lock()
	_, subscribed := ps.subs[msg.Topic]
	ps.mu.Unlock()
	if !subscribed {
		ps.logger.Debug("ignoring message for unsubscribed topic", "topic", msg.Topic)
		return
	}

	id := ps.idFn(msg).Key()
	if ps.isSeen(id) {
		ps.inc(duplicateCounter, msg.Topic)
		return
	}
	if err := ps.validate(msg); err != nil {
		ps.inc(rejectedCounter, rejectReason(err))
		ps.logger.Debug("rejected message",
			"peer", log.TruncateID(from.String(), 12),
			"topic", msg.Topic,
			"error", err)
		return
	}
	if !ps.markSeen(id) {
		ps.inc(duplicateCounter, msg.Topic)
		return
	}

	ps.deliver(msg)
	ps.forward(from, msg)
}

func (ps *PubSub) validate(msg *types.GossipMessage) error {
	if len(msg.Data) > ps.cfg.MaxMessageSize {
		return ErrMessageTooLarge
	}
	if ps.cfg.SignaturePolicy == config.SignaturePolicyStrictNoSign {
		if len(msg.Signature) > 0 || len(msg.Key) > 0 {
			return ErrUnexpectedSignature
		}
		return nil
	}
	return verifyMessage(msg)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrMessageTooLarge):
		return "too_large"
	case errors.Is(err, ErrUnexpectedSignature):
		return "unexpected_signature"
	default:
		return "invalid_signature"
	}
}

// deliver 投递给本地订阅
func (ps *PubSub) deliver(msg *types.GossipMessage) {
	ps.mu.Lock()
	subs := make([]*subscription, 0, len(ps.subs[msg.Topic]))
	for s := range ps.subs[msg.Topic] {
		subs = append(subs, s)
	}
	ps.mu.Unlock()
	if len(subs) == 0 {
		return
	}

	for _, s := range subs {
		if !s.push(msg) {
			ps.logger.Debug("subscriber too slow, dropping message",
				"topic", msg.Topic,
				"seqno", msg.Seqno)
		}
	}
	ps.inc(deliveredCounter, msg.Topic)
}

// forward 转发给至多 MeshDegree 个订阅对端
//
// 不回送给来源与发布者。队列已满的对端直接跳过。
func (ps *PubSub) forward(from types.PeerID, msg *types.GossipMessage) {
	targets := ps.topicPeers(msg.Topic, from, msg.From)
	if len(targets) == 0 {
		return
	}
	rand.Shuffle(len(targets), func(i, j int) { targets[i], targets[j] = targets[j], targets[i] })
	if d := ps.cfg.MeshDegree; d > 0 && len(targets) > d {
		targets = targets[:d]
	}

	frame := (&rpc{Publish: []*types.GossipMessage{msg}}).marshal()
	for _, st := range targets {
		if !st.send(frame) {
			ps.logger.Debug("peer queue full, dropping forwarded message",
				"peer", log.TruncateID(st.id.String(), 12))
		}
	}
}

// topicPeers 返回订阅了主题且已建立发送队列的对端
func (ps *PubSub) topicPeers(topic string, exclude ...types.PeerID) []*peerState {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make([]*peerState, 0, len(ps.topics[topic]))
	for p := range ps.topics[topic] {
		if excluded(p, exclude) {
			continue
		}
		if st, ok := ps.peers[p]; ok {
			out = append(out, st)
		}
	}
	return out
}

func excluded(p types.PeerID, list []types.PeerID) bool {
	for _, e := range list {
		if e != "" && e == p {
			return true
		}
	}
	return false
}

// announce 向所有对端通告订阅变化
func (ps *PubSub) announce(topic string, subscribe bool) {
	frame := (&rpc{Subscriptions: []subOpts{{Subscribe: subscribe, Topic: topic}}}).marshal()

	ps.mu.Lock()
	peers := make([]*peerState, 0, len(ps.peers))
	for _, st := range ps.peers {
		peers = append(peers, st)
	}
	ps.mu.Unlock()

	for _, st := range peers {
		st.send(frame)
	}
}

// helloRPC 当前全部订阅
func (ps *PubSub) helloRPC() []byte {
	ps.mu.Lock()
	r := &rpc{Subscriptions: make([]subOpts, 0, len(ps.subs))}
	for t := range ps.subs {
		r.Subscriptions = append(r.Subscriptions, subOpts{Subscribe: true, Topic: t})
	}
	ps.mu.Unlock()
	return r.marshal()
}

// ============================================================================
//                              已见消息
// ============================================================================

func (ps *PubSub) isSeen(id string) bool {
	ps.seenMu.Lock()
	defer ps.seenMu.Unlock()
	return ps.seen.Contains(id)
}

// markSeen 记录标识，已存在时返回 false
func (ps *PubSub) markSeen(id string) bool {
	ps.seenMu.Lock()
	defer ps.seenMu.Unlock()
	if ps.seen.Contains(id) {
		return false
	}
	ps.seen.Add(id, struct{}{})
	return true
}

// ============================================================================
//                              指标
// ============================================================================

// counter 从指标集合中取计数器
type counter func(*metrics.Metrics) *prometheus.CounterVec

var (
	publishedCounter counter = func(m *metrics.Metrics) *prometheus.CounterVec { return m.GossipPublished }
	deliveredCounter counter = func(m *metrics.Metrics) *prometheus.CounterVec { return m.GossipDelivered }
	duplicateCounter counter = func(m *metrics.Metrics) *prometheus.CounterVec { return m.GossipDuplicate }
	rejectedCounter  counter = func(m *metrics.Metrics) *prometheus.CounterVec { return m.GossipRejected }
)

func (ps *PubSub) inc(c counter, label string) {
	if ps.metrics == nil {
		return
	}
	c(ps.metrics).WithLabelValues(label).Inc()
}
