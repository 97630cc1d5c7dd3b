package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dep2p/go-ucnode/pkg/types"
)

// requestExpiry 请求限流器的空闲回收时间
const requestExpiry = 5 * time.Minute

// 每个节点的请求速率：每秒 1 个，突发 8 个
const (
	peerRequestRate  = rate.Limit(1)
	peerRequestBurst = 8
)

// limiter 中继资源限制
type limiter struct {
	maxReservations int
	maxCircuits     int

	mu       sync.Mutex
	circuits map[types.PeerID]int
	requests map[types.PeerID]*peerRate
}

type peerRate struct {
	lim  *rate.Limiter
	last time.Time
}

func newLimiter(maxReservations, maxCircuits int) *limiter {
	return &limiter{
		maxReservations: maxReservations,
		maxCircuits:     maxCircuits,
		circuits:        make(map[types.PeerID]int),
		requests:        make(map[types.PeerID]*peerRate),
	}
}

// allowRequest 按节点限制请求速率
func (l *limiter) allowRequest(p types.PeerID, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, r := range l.requests {
		if now.Sub(r.last) > requestExpiry {
			delete(l.requests, id)
		}
	}
	r, ok := l.requests[p]
	if !ok {
		r = &peerRate{lim: rate.NewLimiter(peerRequestRate, peerRequestBurst)}
		l.requests[p] = r
	}
	r.last = now
	if !r.lim.AllowN(now, 1) {
		return ErrRateLimited
	}
	return nil
}

// allowReservation 检查预约总数，current 为已有预约数（不含续期节点）
func (l *limiter) allowReservation(current int) error {
	if l.maxReservations > 0 && current >= l.maxReservations {
		return ErrReservationLimit
	}
	return nil
}

// acquireCircuit 为目标节点占用一条电路
func (l *limiter) acquireCircuit(dest types.PeerID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.maxCircuits > 0 && l.circuits[dest] >= l.maxCircuits {
		return ErrCircuitLimit
	}
	l.circuits[dest]++
	return nil
}

// releaseCircuit 释放电路
func (l *limiter) releaseCircuit(dest types.PeerID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.circuits[dest] > 0 {
		l.circuits[dest]--
		if l.circuits[dest] == 0 {
			delete(l.circuits, dest)
		}
	}
}

func (l *limiter) activeCircuits() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.circuits {
		n += c
	}
	return n
}
