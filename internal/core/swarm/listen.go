package swarm

import (
	"fmt"

	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
	"go.uber.org/multierr"
)

// Listen 在多个地址上监听
//
// 没有对应传输的地址被跳过；有传输的地址全部失败时返回错误。
func (s *Swarm) Listen(addrs ...multiaddr.Multiaddr) error {
	if s.closed.Load() {
		return ErrSwarmClosed
	}

	var (
		errs      error
		attempted int
		succeeded int
	)
	for _, addr := range addrs {
		t := s.transportForListening(addr)
		if t == nil {
			s.logger.Debug("no transport for listen address, skipped", "addr", addr)
			continue
		}
		attempted++
		l, err := t.Listen(addr)
		if err != nil {
			s.logger.Warn("listen failed", "addr", addr, "error", err)
			errs = multierr.Append(errs, fmt.Errorf("listen %s: %w", addr, err))
			continue
		}
		succeeded++

		s.mu.Lock()
		s.listeners = append(s.listeners, l)
		s.wg.Add(1)
		s.mu.Unlock()
		go s.acceptLoop(l)

		s.logger.Debug("listening", "addr", l.Multiaddr())
	}

	if attempted > 0 && succeeded == 0 {
		return fmt.Errorf("%w: %w", ErrNoListenAddrs, errs)
	}
	return nil
}

// ListenAddresses 返回实际绑定的监听地址
func (s *Swarm) ListenAddresses() []multiaddr.Multiaddr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]multiaddr.Multiaddr, 0, len(s.listeners))
	for _, l := range s.listeners {
		if m := l.Multiaddr(); m != nil {
			out = append(out, m)
		}
	}
	return out
}

// acceptLoop 接受已升级的入站连接直到监听器关闭
func (s *Swarm) acceptLoop(l pkgif.Listener) {
	defer s.wg.Done()
	for {
		cc, err := l.Accept()
		if err != nil {
			if !s.closed.Load() {
				s.logger.Debug("listener stopped", "addr", l.Multiaddr(), "error", err)
			}
			return
		}
		if cc.RemotePeer() == s.local {
			s.logger.Debug("drop connection from self")
			cc.Close()
			continue
		}
		if !s.allowInbound(cc) {
			s.logger.Debug("inbound connection gated",
				"peer", log.TruncateID(cc.RemotePeer().String(), 12),
				"raddr", cc.RemoteMultiaddr())
			cc.Close()
			continue
		}
		if _, err := s.addConn(cc, types.DirInbound); err != nil {
			return
		}
		s.logger.Debug("accepted connection",
			"peer", log.TruncateID(cc.RemotePeer().String(), 12),
			"raddr", cc.RemoteMultiaddr())
	}
}

func (s *Swarm) allowInbound(cc pkgif.CapableConn) bool {
	if s.gater == nil {
		return true
	}
	return s.gater.InterceptAccept(cc.RemoteMultiaddr()) &&
		s.gater.InterceptSecured(types.DirInbound, cc.RemotePeer())
}
