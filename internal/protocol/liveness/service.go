// Package liveness 实现存活检测服务
package liveness

import (
	"context"
	"log/slog"
	"sync"
	"time"

	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// Pinger 单次 ping
type Pinger interface {
	Ping(ctx context.Context, peer types.PeerID) (time.Duration, error)
}

// Service 基于 ping 协议的存活检测
//
// 记录每个对端的 RTT 与连续失败次数；Interval 大于 0 时
// 周期性地 ping 所有已连接节点。
type Service struct {
	host   pkgif.Host
	pinger Pinger
	logger *slog.Logger

	mu      sync.RWMutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// 状态管理
	statuses map[types.PeerID]*peerStatus

	// Watch 管理
	watches map[types.PeerID][]chan Event

	config *Config
}

// New 创建 Liveness 服务
func New(host pkgif.Host, pinger Pinger, logger *slog.Logger, opts ...Option) (*Service, error) {
	if host == nil {
		return nil, ErrNilHost
	}
	if logger == nil {
		logger = log.Discard()
	}

	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	return &Service{
		host:     host,
		pinger:   pinger,
		logger:   logger,
		statuses: make(map[types.PeerID]*peerStatus),
		watches:  make(map[types.PeerID][]chan Event),
		config:   config,
	}, nil
}

// Start 启动服务
func (s *Service) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	// Fx OnStart 的 ctx 在返回后会被取消，后台循环使用独立的 ctx
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.started = true

	if s.config.Interval > 0 {
		s.wg.Add(1)
		go s.loop()
	}
	s.logger.Debug("liveness service started", "interval", s.config.Interval, "timeout", s.config.Timeout)
	return nil
}

// Stop 停止服务
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.cancel()
	s.started = false
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	watches := s.watches
	s.watches = make(map[types.PeerID][]chan Event)
	s.mu.Unlock()

	for _, channels := range watches {
		for _, ch := range channels {
			close(ch)
		}
	}
	return nil
}

// loop 周期检测已连接节点
func (s *Service) loop() {
	defer s.wg.Done()

	ticker := s.config.Clock.Ticker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.checkConnected()
		}
	}
}

func (s *Service) checkConnected() {
	var wg sync.WaitGroup
	for _, p := range s.host.Network().Peers() {
		wg.Add(1)
		go func(p types.PeerID) {
			defer wg.Done()
			_, _ = s.Ping(s.ctx, p)
		}(p)
	}
	wg.Wait()
}

// Ping 发送 ping 并测量 RTT，结果计入对端状态
func (s *Service) Ping(ctx context.Context, peer types.PeerID) (time.Duration, error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return 0, ErrNotStarted
	}

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}
	rtt, err := s.pinger.Ping(ctx, peer)
	if err != nil {
		s.logger.Debug("ping failed", "peer", log.TruncateID(peer.String(), 12), "error", err)
		s.updateStatus(peer, 0, false)
		return 0, err
	}
	s.updateStatus(peer, rtt, true)
	return rtt, nil
}

// Check 检查节点是否存活
func (s *Service) Check(ctx context.Context, peer types.PeerID) (bool, error) {
	if _, err := s.Ping(ctx, peer); err != nil {
		if err == ErrNotStarted {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// Watch 监控节点状态变化
func (s *Service) Watch(peer types.PeerID) (<-chan Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil, ErrNotStarted
	}
	ch := make(chan Event, 16)
	s.watches[peer] = append(s.watches[peer], ch)
	return ch, nil
}

// Unwatch 停止监控节点
func (s *Service) Unwatch(peer types.PeerID) error {
	s.mu.Lock()
	channels, ok := s.watches[peer]
	if !ok || len(channels) == 0 {
		s.mu.Unlock()
		return ErrWatchNotFound
	}
	delete(s.watches, peer)
	s.mu.Unlock()

	for _, ch := range channels {
		close(ch)
	}
	return nil
}

// GetStatus 获取节点存活状态
func (s *Service) GetStatus(peer types.PeerID) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, ok := s.statuses[peer]
	if !ok {
		return Status{}
	}
	return status.getStatus()
}

// updateStatus 更新节点状态并通知监听者
func (s *Service) updateStatus(peer types.PeerID, rtt time.Duration, success bool) {
	s.mu.Lock()
	status, ok := s.statuses[peer]
	if !ok {
		status = newPeerStatus(s.config.RTTWindowSize, s.config.FailThreshold)
		s.statuses[peer] = status
	}
	s.mu.Unlock()

	oldAlive := status.isAlive()
	now := s.config.Clock.Now()
	if success {
		status.recordSuccess(rtt, now)
	} else {
		status.recordFailure()
	}
	newStatus := status.getStatus()

	eventType := EventTimeout
	if success {
		eventType = EventPong
	}
	if oldAlive != newStatus.Alive {
		if newStatus.Alive {
			eventType = EventUp
		} else {
			eventType = EventDown
			s.logger.Info("peer unresponsive", "peer", log.TruncateID(peer.String(), 12), "failures", newStatus.FailCount)
		}
	}

	s.notifyWatchers(peer, Event{
		Peer:      peer,
		Type:      eventType,
		Status:    newStatus,
		Timestamp: now,
		RTT:       rtt,
	})
}

// notifyWatchers 通知监听者，通道满时丢弃
func (s *Service) notifyWatchers(peer types.PeerID, event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.watches[peer] {
		select {
		case ch <- event:
		default:
		}
	}
}
