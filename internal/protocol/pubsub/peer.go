package pubsub

import (
	"context"
	"sync"

	"github.com/dep2p/go-ucnode/internal/util/framing"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/protocolids"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// peerState 对端发送队列
type peerState struct {
	id    types.PeerID
	queue chan []byte

	once sync.Once
	done chan struct{}
}

func newPeerState(id types.PeerID) *peerState {
	return &peerState{
		id:    id,
		queue: make(chan []byte, peerQueueSize),
		done:  make(chan struct{}),
	}
}

// send 非阻塞入队，队列已满或对端已移除时返回 false
func (st *peerState) send(frame []byte) bool {
	select {
	case <-st.done:
		return false
	default:
	}
	select {
	case st.queue <- frame:
		return true
	default:
		return false
	}
}

// sendCtx 阻塞入队，对端已移除时静默返回
func (st *peerState) sendCtx(ctx context.Context, frame []byte) error {
	select {
	case st.queue <- frame:
		return nil
	case <-st.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (st *peerState) stop() {
	st.once.Do(func() { close(st.done) })
}

// ============================================================================
//                              对端管理
// ============================================================================

// addPeer 为对端建立发送队列并启动写协程
//
// 已存在或已知不支持协议的对端被忽略。
func (ps *PubSub) addPeer(p types.PeerID) {
	if p == ps.host.ID() {
		return
	}
	ps.mu.Lock()
	if !ps.started || ps.closed {
		ps.mu.Unlock()
		return
	}
	if _, ok := ps.peers[p]; ok {
		ps.mu.Unlock()
		return
	}
	if _, ok := ps.unsupported[p]; ok {
		ps.mu.Unlock()
		return
	}
	st := newPeerState(p)
	ps.peers[p] = st
	ctx := ps.ctx
	ps.wg.Add(1)
	ps.mu.Unlock()

	go ps.writeLoop(ctx, st)
}

// removePeer 移除对端的发送队列与订阅记录
func (ps *PubSub) removePeer(p types.PeerID) {
	ps.mu.Lock()
	st := ps.peers[p]
	delete(ps.peers, p)
	delete(ps.unsupported, p)
	for t, set := range ps.topics {
		delete(set, p)
		if len(set) == 0 {
			delete(ps.topics, t)
		}
	}
	ps.mu.Unlock()

	if st != nil {
		st.stop()
	}
}

// dropState 写协程退出时移除自身（不清理订阅记录）
func (ps *PubSub) dropState(st *peerState, unsupported bool) {
	ps.mu.Lock()
	if ps.peers[st.id] == st {
		delete(ps.peers, st.id)
		if unsupported {
			ps.unsupported[st.id] = struct{}{}
		}
	}
	ps.mu.Unlock()
	st.stop()
}

func (ps *PubSub) writeLoop(ctx context.Context, st *peerState) {
	defer ps.wg.Done()

	openCtx, cancel := context.WithTimeout(ctx, openStreamTimeout)
	s, err := ps.host.NewStream(openCtx, st.id, protocolids.GossipSub)
	cancel()
	if err != nil {
		// 连接仍在却无法协商，视为不支持
		unsupported := ctx.Err() == nil && ps.host.Network().Connected(st.id)
		ps.logger.Debug("open gossip stream failed",
			"peer", log.TruncateID(st.id.String(), 12),
			"unsupported", unsupported,
			"error", err)
		ps.dropState(st, unsupported)
		return
	}

	if err := framing.WriteMsg(s, ps.helloRPC()); err != nil {
		ps.writeFailed(s, st, err)
		return
	}
	ps.logger.Debug("gossip peer added", "peer", log.TruncateID(st.id.String(), 12))

	for {
		select {
		case frame := <-st.queue:
			if err := framing.WriteMsg(s, frame); err != nil {
				ps.writeFailed(s, st, err)
				return
			}
		case <-st.done:
			_ = s.Close()
			return
		case <-ctx.Done():
			_ = s.Close()
			return
		}
	}
}

func (ps *PubSub) writeFailed(s pkgif.Stream, st *peerState, err error) {
	ps.logger.Debug("gossip stream write failed",
		"peer", log.TruncateID(st.id.String(), 12),
		"error", err)
	_ = s.Reset()
	ps.dropState(st, false)
}

func (ps *PubSub) watchPeers(sub pkgif.Subscription) {
	defer ps.wg.Done()
	for e := range sub.Out() {
		evt, ok := e.(types.EvtPeerConnectedness)
		if !ok {
			continue
		}
		if evt.Connected {
			ps.addPeer(evt.Peer)
		} else {
			ps.removePeer(evt.Peer)
		}
	}
}

// heartbeat 周期性为缺少发送队列的已连接对端重建 gossip 流
func (ps *PubSub) heartbeat() {
	defer ps.wg.Done()
	interval := ps.cfg.HeartbeatInterval.Duration()
	if interval <= 0 {
		return
	}
	ticker := ps.clock.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, p := range ps.host.Network().Peers() {
				ps.addPeer(p)
			}
		case <-ps.ctx.Done():
			return
		}
	}
}
