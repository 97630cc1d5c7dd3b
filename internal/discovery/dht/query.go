package dht

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-ucnode/internal/util/framing"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// ============================================================================
//                              迭代查询
// ============================================================================

// candidateState 候选节点状态
type candidateState int

const (
	stateHeard candidateState = iota
	stateWaiting
	stateQueried
	stateFailed
)

// lookupState 一次迭代查询的状态
type lookupState struct {
	target Key
	self   types.PeerID

	mu     sync.Mutex
	peers  []types.PeerID
	keys   map[types.PeerID]Key
	states map[types.PeerID]candidateState
}

func newLookupState(target Key, self types.PeerID, seeds []types.PeerID) *lookupState {
	ls := &lookupState{
		target: target,
		self:   self,
		keys:   make(map[types.PeerID]Key),
		states: make(map[types.PeerID]candidateState),
	}
	for _, p := range seeds {
		ls.add(p)
	}
	return ls
}

// add 记录新节点，已知节点返回 false；调用方持有 mu 或在初始化阶段
func (ls *lookupState) add(p types.PeerID) bool {
	if p == ls.self {
		return false
	}
	if _, ok := ls.states[p]; ok {
		return false
	}
	ls.states[p] = stateHeard
	ls.keys[p] = KeyForPeer(p)
	ls.peers = append(ls.peers, p)
	sort.Slice(ls.peers, func(i, j int) bool {
		return Closer(ls.keys[ls.peers[i]], ls.keys[ls.peers[j]], ls.target)
	})
	return true
}

// next 选出最近 k 个中尚未查询的节点，最多 alpha 个
func (ls *lookupState) next(k, alpha int) []types.PeerID {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	var out []types.PeerID
	seen := 0
	for _, p := range ls.peers {
		st := ls.states[p]
		if st == stateFailed {
			continue
		}
		if seen >= k {
			break
		}
		seen++
		if st == stateHeard {
			ls.states[p] = stateWaiting
			out = append(out, p)
			if len(out) == alpha {
				break
			}
		}
	}
	return out
}

func (ls *lookupState) mark(p types.PeerID, st candidateState) {
	ls.mu.Lock()
	ls.states[p] = st
	ls.mu.Unlock()
}

// closest 已成功查询的最近 k 个节点
func (ls *lookupState) closest(k int) []types.PeerID {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	var out []types.PeerID
	for _, p := range ls.peers {
		if ls.states[p] == stateQueried {
			out = append(out, p)
			if len(out) == k {
				break
			}
		}
	}
	return out
}

// lookup 执行 Kademlia 迭代查询
//
// 每轮并发查询 Alpha 个最近且未查询的节点，直到最近的 K 个节点都已查询。
// found 返回 true 时提前结束。查询失败的节点从路由表中移除。
func (d *DHT) lookup(ctx context.Context, key []byte, found func(PeerInfo) bool) ([]types.PeerID, error) {
	target := KeyForBytes(key)
	k := d.cfg.BucketSize
	alpha := max(d.cfg.Alpha, 1)

	seeds := d.rt.NearestPeers(target, k)
	if len(seeds) == 0 {
		return nil, ErrEmptyRoutingTable
	}
	if timeout := d.cfg.QueryTimeout.Duration(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	ls := newLookupState(target, d.host.ID(), seeds)
	start := time.Now()
	queried := 0

	for {
		batch := ls.next(k, alpha)
		if len(batch) == 0 {
			break
		}
		queried += len(batch)

		g, gctx := errgroup.WithContext(ctx)
		for _, p := range batch {
			p := p
			g.Go(func() error {
				closer, err := d.findNode(gctx, p, key)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					ls.mark(p, stateFailed)
					d.rt.Remove(p)
					d.logger.Debug("dht query failed", "peer", log.TruncateID(p.String(), 12), "error", err)
					return nil
				}
				ls.mark(p, stateQueried)
				d.rt.Add(p)

				ls.mu.Lock()
				for _, info := range closer {
					if info.ID == d.host.ID() {
						continue
					}
					if len(info.Addrs) > 0 {
						d.host.Peerstore().AddAddrs(info.ID, info.Addrs, pkgif.TempAddrTTL)
					}
					ls.add(info.ID)
				}
				ls.mu.Unlock()

				if found != nil {
					for _, info := range closer {
						if found(info) {
							stop()
							break
						}
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			if found != nil && ctx.Err() != nil {
				// found 主动结束
				break
			}
			return nil, err
		}
	}

	result := ls.closest(k)
	d.logger.Debug("dht lookup finished",
		"target", target.String()[:12],
		"queried", queried,
		"results", len(result),
		"duration", time.Since(start))
	return result, nil
}

// findNode 向单个节点发送 FIND_NODE
func (d *DHT) findNode(ctx context.Context, p types.PeerID, key []byte) ([]PeerInfo, error) {
	if err := d.outbound.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer d.outbound.Release(1)

	s, err := d.host.NewStream(ctx, p, d.protocol)
	if err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = s.SetDeadline(dl)
	}

	req := &Message{Type: MessageFindNode, Key: key}
	if err := framing.WriteMsg(s, req.Marshal()); err != nil {
		_ = s.Reset()
		return nil, err
	}
	b, err := framing.ReadMsg(s, maxMessageSize)
	if err != nil {
		_ = s.Reset()
		return nil, err
	}
	_ = s.Close()

	var resp Message
	if err := resp.Unmarshal(b); err != nil {
		return nil, err
	}
	if resp.Type != MessageFindNode {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedResponse, resp.Type)
	}
	return resp.CloserPeers, nil
}
