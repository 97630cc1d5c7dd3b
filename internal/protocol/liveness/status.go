// Package liveness 实现存活检测服务
package liveness

import (
	"sync"
	"time"

	"github.com/dep2p/go-ucnode/pkg/types"
)

// Status 节点存活状态
type Status struct {
	Alive        bool
	LastSeen     time.Time
	LastRTT      time.Duration
	AvgRTT       time.Duration
	MinRTT       time.Duration
	MaxRTT       time.Duration
	FailCount    int
	TotalPings   int
	SuccessCount int
	SuccessRate  float64
}

// EventType 存活事件类型
type EventType int

const (
	// EventPong 收到回应
	EventPong EventType = iota
	// EventTimeout 一次检测失败
	EventTimeout
	// EventUp 节点由下线变为存活
	EventUp
	// EventDown 连续失败达到阈值
	EventDown
)

func (t EventType) String() string {
	switch t {
	case EventPong:
		return "pong"
	case EventTimeout:
		return "timeout"
	case EventUp:
		return "up"
	case EventDown:
		return "down"
	default:
		return "unknown"
	}
}

// Event 存活事件
type Event struct {
	Peer      types.PeerID
	Type      EventType
	Status    Status
	Timestamp time.Time
	RTT       time.Duration
}

// peerStatus 节点状态
type peerStatus struct {
	alive      bool
	lastSeen   time.Time
	lastRTT    time.Duration
	rttSamples []time.Duration
	failCount  int

	window    int
	threshold int

	minRTT       time.Duration // 历史最小 RTT
	maxRTT       time.Duration // 历史最大 RTT
	totalPings   int           // 总 Ping 次数
	successCount int           // 成功次数

	mu sync.RWMutex
}

// newPeerStatus 创建节点状态
func newPeerStatus(window, threshold int) *peerStatus {
	if window <= 0 {
		window = 10
	}
	if threshold <= 0 {
		threshold = 3
	}
	return &peerStatus{
		rttSamples: make([]time.Duration, 0, window),
		window:     window,
		threshold:  threshold,
	}
}

// recordSuccess 记录成功
func (ps *peerStatus) recordSuccess(rtt time.Duration, now time.Time) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.alive = true
	ps.lastSeen = now
	ps.lastRTT = rtt
	ps.failCount = 0

	ps.rttSamples = append(ps.rttSamples, rtt)
	if len(ps.rttSamples) > ps.window {
		ps.rttSamples = ps.rttSamples[len(ps.rttSamples)-ps.window:]
	}

	if ps.minRTT == 0 || rtt < ps.minRTT {
		ps.minRTT = rtt
	}
	if rtt > ps.maxRTT {
		ps.maxRTT = rtt
	}

	ps.totalPings++
	ps.successCount++
}

// recordFailure 记录失败
func (ps *peerStatus) recordFailure() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.failCount++
	ps.totalPings++

	if ps.failCount >= ps.threshold {
		ps.alive = false
	}
}

// getStatus 获取状态
func (ps *peerStatus) getStatus() Status {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	var successRate float64
	if ps.totalPings > 0 {
		successRate = float64(ps.successCount) / float64(ps.totalPings)
	}

	return Status{
		Alive:        ps.alive,
		LastSeen:     ps.lastSeen,
		LastRTT:      ps.lastRTT,
		AvgRTT:       ps.calculateAvgRTT(),
		MinRTT:       ps.minRTT,
		MaxRTT:       ps.maxRTT,
		FailCount:    ps.failCount,
		TotalPings:   ps.totalPings,
		SuccessCount: ps.successCount,
		SuccessRate:  successRate,
	}
}

// calculateAvgRTT 计算平均RTT (需要持有锁)
func (ps *peerStatus) calculateAvgRTT() time.Duration {
	if len(ps.rttSamples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, rtt := range ps.rttSamples {
		sum += rtt
	}
	return sum / time.Duration(len(ps.rttSamples))
}

// isAlive 检查是否存活
func (ps *peerStatus) isAlive() bool {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.alive
}
