package swarm

import (
	"context"
	"fmt"

	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
	"go.uber.org/multierr"
)

// DialAddr 对单个地址进行一次拨号尝试
//
// peer 为空时取地址末尾的 /p2p 段；两者都没有时接受握手得到的任意身份。
// 不重试，超时由 ctx 与传输自身的握手超时控制。
func (s *Swarm) DialAddr(ctx context.Context, addr multiaddr.Multiaddr, peer types.PeerID) (pkgif.Conn, error) {
	if s.closed.Load() {
		return nil, ErrSwarmClosed
	}
	if peer == "" {
		if _, id := multiaddr.SplitP2P(addr); id != "" {
			p, err := types.ParsePeerID(id)
			if err != nil {
				return nil, err
			}
			peer = p
		}
	}
	if peer != "" && peer == s.local {
		return nil, ErrDialSelf
	}
	if s.gater != nil && !s.gater.InterceptAddrDial(peer, addr) {
		return nil, fmt.Errorf("%w: %s", ErrGaterDisallowed, addr)
	}

	t := s.TransportForDialing(addr)
	if t == nil {
		s.metrics.ObserveDial(transportName(nil), ErrNoTransport)
		return nil, fmt.Errorf("%w: %s", ErrNoTransport, addr)
	}

	cc, err := t.Dial(ctx, addr, peer)
	s.metrics.ObserveDial(transportName(t), err)
	if err != nil {
		return nil, err
	}
	if cc.RemotePeer() == s.local {
		cc.Close()
		return nil, ErrDialSelf
	}
	if s.gater != nil && !s.gater.InterceptSecured(types.DirOutbound, cc.RemotePeer()) {
		cc.Close()
		return nil, fmt.Errorf("%w: %s", ErrGaterDisallowed, cc.RemotePeer())
	}
	c, err := s.addConn(cc, types.DirOutbound)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// DialPeer 使用 peerstore 中的地址连接对端
//
// 已连接时复用现有连接；同一对端的并发调用合并为一次拨号。
func (s *Swarm) DialPeer(ctx context.Context, peer types.PeerID) (pkgif.Conn, error) {
	if peer == s.local {
		return nil, ErrDialSelf
	}
	if c := s.bestConn(peer); c != nil {
		return c, nil
	}
	if s.gater != nil && !s.gater.InterceptPeerDial(peer) {
		return nil, fmt.Errorf("%w: %s", ErrGaterDisallowed, peer)
	}
	ch := s.dialGroup.DoChan(string(peer), func() (interface{}, error) {
		return s.dialPeer(ctx, peer)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(pkgif.Conn), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Swarm) dialPeer(ctx context.Context, peer types.PeerID) (pkgif.Conn, error) {
	if c := s.bestConn(peer); c != nil {
		return c, nil
	}
	if s.peerstore == nil {
		return nil, ErrNoAddresses
	}
	addrs := s.peerstore.Addrs(peer)
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAddresses, peer)
	}

	var errs error
	for _, addr := range addrs {
		if s.TransportForDialing(addr) == nil {
			continue
		}
		dctx, cancel := context.WithTimeout(ctx, s.dialTimeout)
		c, err := s.DialAddr(dctx, addr, peer)
		cancel()
		if err == nil {
			return c, nil
		}
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", addr, err))
		if ctx.Err() != nil {
			break
		}
	}
	if errs == nil {
		return nil, fmt.Errorf("%w: no dialable address for %s", ErrNoTransport, peer)
	}
	s.logger.Debug("dial peer failed", "peer", log.TruncateID(peer.String(), 12), "error", errs)
	return nil, errs
}

// NewStream 在到对端的连接上打开流（必要时先拨号）
func (s *Swarm) NewStream(ctx context.Context, peer types.PeerID) (pkgif.Stream, error) {
	c, err := s.DialPeer(ctx, peer)
	if err != nil {
		return nil, err
	}
	return c.NewStream(ctx)
}
