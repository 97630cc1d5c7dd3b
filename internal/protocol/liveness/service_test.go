// Package liveness 实现存活检测服务
package liveness

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/core/protocol/system/ping"
	"github.com/dep2p/go-ucnode/internal/testutil"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// pingerFunc 以函数实现 Pinger
type pingerFunc func(ctx context.Context, p types.PeerID) (time.Duration, error)

func (f pingerFunc) Ping(ctx context.Context, p types.PeerID) (time.Duration, error) {
	return f(ctx, p)
}

func TestService_NotStarted(t *testing.T) {
	h := testutil.NewHost(t)
	s, err := New(h, pingerFunc(nil), nil)
	require.NoError(t, err)

	_, err = s.Ping(context.Background(), h.ID())
	assert.ErrorIs(t, err, ErrNotStarted)
	_, err = s.Watch(h.ID())
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.ErrorIs(t, s.Stop(), ErrNotStarted)
}

func TestService_NilHost(t *testing.T) {
	_, err := New(nil, pingerFunc(nil), nil)
	assert.ErrorIs(t, err, ErrNilHost)
}

func TestService_WatchDownAndUp(t *testing.T) {
	h := testutil.NewHost(t)
	var fail atomic.Bool
	pinger := pingerFunc(func(context.Context, types.PeerID) (time.Duration, error) {
		if fail.Load() {
			return 0, errors.New("unreachable")
		}
		return 5 * time.Millisecond, nil
	})

	s, err := New(h, pinger, nil, WithFailThreshold(2))
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	peer := types.PeerID("12D3KooWtest")
	ch, err := s.Watch(peer)
	require.NoError(t, err)

	ok, err := s.Check(context.Background(), peer)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, EventUp, (<-ch).Type)

	fail.Store(true)
	ok, _ = s.Check(context.Background(), peer)
	assert.False(t, ok)
	assert.Equal(t, EventTimeout, (<-ch).Type)
	_, _ = s.Check(context.Background(), peer)
	assert.Equal(t, EventDown, (<-ch).Type)

	status := s.GetStatus(peer)
	assert.False(t, status.Alive)
	assert.Equal(t, 2, status.FailCount)

	require.NoError(t, s.Unwatch(peer))
	assert.ErrorIs(t, s.Unwatch(peer), ErrWatchNotFound)
}

func TestService_PeriodicPing(t *testing.T) {
	a := testutil.NewHost(t)
	b := testutil.NewHost(t)
	testutil.Connect(t, a, b)

	mock := clock.NewMock()
	var calls atomic.Int32
	pinger := pingerFunc(func(_ context.Context, p types.PeerID) (time.Duration, error) {
		if p == b.ID() {
			calls.Add(1)
		}
		return time.Millisecond, nil
	})

	s, err := New(a, pinger, nil, WithInterval(time.Minute), WithClock(mock))
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	// 等待 ticker 注册到 mock 时钟
	time.Sleep(20 * time.Millisecond)
	mock.Add(time.Minute)

	testutil.Eventually(t, 2*time.Second, func() bool {
		return calls.Load() >= 1
	}, "periodic ping reaches connected peer")
	assert.True(t, s.GetStatus(b.ID()).Alive)
}

func TestService_WithPingProtocol(t *testing.T) {
	a := testutil.NewHost(t)
	b := testutil.NewHost(t)
	cfg := config.DefaultLivenessConfig()
	pb := ping.NewService(b, cfg, nil)
	require.NoError(t, pb.Start(context.Background()))
	testutil.Connect(t, a, b)

	s, err := New(a, ping.NewService(a, cfg, nil), nil)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	rtt, err := s.Ping(context.Background(), b.ID())
	require.NoError(t, err)
	assert.Equal(t, rtt, s.GetStatus(b.ID()).LastRTT)
}

func TestService_PingTimeout(t *testing.T) {
	h := testutil.NewHost(t)
	blocking := pingerFunc(func(ctx context.Context, _ types.PeerID) (time.Duration, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	s, err := New(h, blocking, nil, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	peer := types.PeerID("slow-peer")
	_, err = s.Ping(context.Background(), peer)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, s.GetStatus(peer).FailCount)
}

func TestProvideService_AppliesConfig(t *testing.T) {
	h := testutil.NewHost(t)
	cfg := config.NewConfig()
	cfg.Liveness.Timeout = config.Duration(3 * time.Second)

	s, err := ProvideService(ModuleInput{
		Config: cfg,
		Host:   h,
		Ping:   ping.NewService(h, cfg.Liveness, nil),
	})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, s.config.Timeout)
	assert.Equal(t, 30*time.Second, s.config.Interval, "periodic checks are on by default")
}
