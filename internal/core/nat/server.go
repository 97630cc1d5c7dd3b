package nat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dep2p/go-ucnode/internal/core/host"
	"github.com/dep2p/go-ucnode/internal/util/framing"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/protocolids"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// ============================================================================
//                          AutoNAT 服务端
// ============================================================================

const (
	// DialBackTimeout 拨回超时
	DialBackTimeout = 15 * time.Second

	// maxMessageSize 单条 AutoNAT 消息上限
	maxMessageSize = 4096

	// maxDialBackAddrs 每个请求最多尝试的地址数
	maxDialBackAddrs = 8

	// serverInboundStreams 服务端同时处理的请求数
	serverInboundStreams = 16
)

// Server AutoNAT 服务端
//
// 工作流程：
//  1. 接收 Dial 请求（包含请求方希望验证的地址）
//  2. 只保留 IP 与请求连接观测 IP 相同的直连地址
//  3. 逐个拨回，任一成功即返回 OK
//
// 同一对端同时只处理一个请求。
type Server struct {
	host    pkgif.Host
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	active map[types.PeerID]struct{}
}

// NewServer 创建 AutoNAT 服务端
func NewServer(h pkgif.Host, logger *slog.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	return &Server{
		host:    h,
		timeout: DialBackTimeout,
		logger:  logger,
		active:  make(map[types.PeerID]struct{}),
	}
}

// Start 注册 AutoNAT 协议
func (s *Server) Start() {
	s.host.SetStreamHandler(protocolids.AutoNAT, host.LimitHandler(serverInboundStreams, s.HandleStream))
}

// Stop 注销 AutoNAT 协议
func (s *Server) Stop() {
	s.host.RemoveStreamHandler(protocolids.AutoNAT)
}

// HandleStream 处理 AutoNAT 请求
func (s *Server) HandleStream(stream pkgif.Stream) {
	defer stream.Close()
	_ = stream.SetDeadline(time.Now().Add(s.timeout + 5*time.Second))

	b, err := framing.ReadMsg(stream, maxMessageSize)
	if err != nil {
		_ = stream.Reset()
		return
	}
	var req message
	if err := req.unmarshal(b); err != nil || req.Type != typeDial || req.Dial == nil {
		s.respond(stream, &dialResponse{Status: StatusBadRequest, Text: "expected dial message"})
		return
	}

	remote := stream.Conn().RemotePeer()
	if req.Dial.Peer != "" && req.Dial.Peer != remote {
		s.respond(stream, &dialResponse{Status: StatusBadRequest, Text: "peer id mismatch"})
		return
	}
	if !s.acquire(remote) {
		s.respond(stream, &dialResponse{Status: StatusDialRefused, Text: "too many dials"})
		return
	}
	defer s.release(remote)

	addrs := eligibleAddrs(req.Dial.Addrs, stream.Conn().RemoteMultiaddr())
	if len(addrs) == 0 {
		s.respond(stream, &dialResponse{Status: StatusDialRefused, Text: "no dialable addresses"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.respond(stream, s.dialBack(ctx, remote, addrs))
}

// dialBack 逐个地址拨回，成功后立即关闭新连接
func (s *Server) dialBack(ctx context.Context, p types.PeerID, addrs []multiaddr.Multiaddr) *dialResponse {
	var lastErr error
	for _, a := range addrs {
		c, err := s.host.Network().DialAddr(ctx, a, p)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		_ = c.Close()
		s.logger.Debug("dial back succeeded", "peer", log.TruncateID(p.String(), 12), "addr", a)
		return &dialResponse{Status: StatusOK, Addr: a}
	}
	text := "dial failed"
	if lastErr != nil {
		text = lastErr.Error()
	}
	return &dialResponse{Status: StatusDialError, Text: text}
}

func (s *Server) respond(stream pkgif.Stream, r *dialResponse) {
	msg := &message{Type: typeDialResponse, Response: r}
	if err := framing.WriteMsg(stream, msg.marshal()); err != nil {
		_ = stream.Reset()
	}
}

func (s *Server) acquire(p types.PeerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[p]; ok {
		return false
	}
	s.active[p] = struct{}{}
	return true
}

func (s *Server) release(p types.PeerID) {
	s.mu.Lock()
	delete(s.active, p)
	s.mu.Unlock()
}

// eligibleAddrs 只保留 IP 与观测地址一致的直连地址
//
// 防止把服务端当作对第三方发起连接的工具。
func eligibleAddrs(addrs []multiaddr.Multiaddr, observed multiaddr.Multiaddr) []multiaddr.Multiaddr {
	ip := hostIP(observed)
	if ip == "" {
		return nil
	}
	var out []multiaddr.Multiaddr
	for _, a := range addrs {
		if a.HasProtocol(multiaddr.P_CIRCUIT) || hostIP(a) != ip {
			continue
		}
		out = append(out, a)
		if len(out) == maxDialBackAddrs {
			break
		}
	}
	return out
}

func hostIP(a multiaddr.Multiaddr) string {
	if a == nil {
		return ""
	}
	if v, err := a.ValueForProtocol(multiaddr.P_IP4); err == nil {
		return v
	}
	if v, err := a.ValueForProtocol(multiaddr.P_IP6); err == nil {
		return v
	}
	return ""
}
