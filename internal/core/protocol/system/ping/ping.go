package ping

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/core/host"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/protocolids"
	"github.com/dep2p/go-ucnode/pkg/types"
)

const (
	// PingSize Ping 消息大小（32 字节）
	PingSize = 32

	// HandlerIdleTimeout Handler 空闲超时时间
	HandlerIdleTimeout = 60 * time.Second
)

var (
	// ErrDataMismatch Ping 回显数据不匹配
	ErrDataMismatch = errors.New("ping: echo data mismatch")

	// ErrTooManyPings 出站 ping 达到上限
	ErrTooManyPings = errors.New("ping: too many outbound pings")
)

// Service Ping 服务
type Service struct {
	host    pkgif.Host
	timeout time.Duration
	maxIn   int
	outSem  *semaphore.Weighted
	logger  *slog.Logger
}

// NewService 创建 Ping 服务
func NewService(h pkgif.Host, cfg config.LivenessConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = log.Discard()
	}
	return &Service{
		host:    h,
		timeout: cfg.Timeout.Duration(),
		maxIn:   cfg.MaxInboundStreams,
		outSem:  semaphore.NewWeighted(int64(cfg.MaxOutboundStreams)),
		logger:  logger,
	}
}

// Start 注册协议处理器
func (s *Service) Start(_ context.Context) error {
	s.host.SetStreamHandler(protocolids.Ping, host.LimitHandler(s.maxIn, s.Handler))
	return nil
}

// Stop 注销协议处理器
func (s *Service) Stop() error {
	s.host.RemoveStreamHandler(protocolids.Ping)
	return nil
}

// Handler 处理 Ping 请求（服务器端）
// 读取数据并回显
func (s *Service) Handler(stream pkgif.Stream) {
	defer stream.Close()

	buf := make([]byte, PingSize)

	// 循环处理 Ping 请求（支持连续 ping）
	for {
		_ = stream.SetReadDeadline(time.Now().Add(HandlerIdleTimeout))

		if _, err := io.ReadFull(stream, buf); err != nil {
			return
		}
		if _, err := stream.Write(buf); err != nil {
			return
		}
	}
}

// Ping 主动 Ping 节点（客户端）
// 返回往返时间（RTT）
func (s *Service) Ping(ctx context.Context, peer types.PeerID) (time.Duration, error) {
	if !s.outSem.TryAcquire(1) {
		return 0, ErrTooManyPings
	}
	defer s.outSem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stream, err := s.host.NewStream(ctx, peer, protocolids.Ping)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	rtt, err := pingOnce(stream, deadlineOf(ctx, s.timeout))
	if err != nil {
		_ = stream.Reset()
		return 0, err
	}
	s.logger.Debug("ping", "peer", log.TruncateID(peer.String(), 12), "rtt", rtt)
	return rtt, nil
}

func deadlineOf(ctx context.Context, fallback time.Duration) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(fallback)
}

// pingOnce 在流上完成一次 ping
func pingOnce(stream io.ReadWriter, deadline time.Time) (time.Duration, error) {
	if ds, ok := stream.(interface{ SetDeadline(time.Time) error }); ok {
		_ = ds.SetDeadline(deadline)
	}

	buf := make([]byte, PingSize)
	if _, err := rand.Read(buf); err != nil {
		return 0, err
	}

	start := time.Now()
	if _, err := stream.Write(buf); err != nil {
		return 0, err
	}
	echo := make([]byte, PingSize)
	if _, err := io.ReadFull(stream, echo); err != nil {
		return 0, err
	}
	rtt := time.Since(start)

	if !bytes.Equal(buf, echo) {
		return 0, ErrDataMismatch
	}
	return rtt, nil
}
