package bootstrap

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/testutil"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
)

func TestService_ConnectsAndReconnects(t *testing.T) {
	a := testutil.NewHost(t)
	b := testutil.NewHost(t)

	svc := New(a, []Peer{{Info: b.Info()}}, config.DefaultDiscoveryConfig(), nil)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Stop() })

	testutil.Eventually(t, 5*time.Second, func() bool {
		return a.Network().Connected(b.ID())
	}, "bootstrap peer should be connected")

	require.NoError(t, a.Network().ClosePeer(b.ID()))
	testutil.Eventually(t, 5*time.Second, func() bool {
		return a.Network().Connected(b.ID())
	}, "bootstrap peer should be reconnected")
}

func TestService_StartStop(t *testing.T) {
	a := testutil.NewHost(t)
	svc := New(a, nil, config.DefaultDiscoveryConfig(), nil)

	assert.ErrorIs(t, svc.Stop(), ErrNotStarted)
	require.NoError(t, svc.Start(context.Background()))
	assert.ErrorIs(t, svc.Start(context.Background()), ErrAlreadyStarted)
	require.NoError(t, svc.Stop())
	assert.Equal(t, "bootstrap", svc.Name())
}

// failingResolver 记录每次解析时的时钟并返回错误
type failingResolver struct {
	clock *clock.Mock
	mu    sync.Mutex
	calls []time.Time
}

func (r *failingResolver) Resolve(context.Context, multiaddr.Multiaddr) ([]multiaddr.Multiaddr, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, r.clock.Now())
	return nil, errors.New("no such host")
}

func (r *failingResolver) times() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Time(nil), r.calls...)
}

func TestService_ExponentialBackoff(t *testing.T) {
	a := testutil.NewHost(t)
	mock := clock.NewMock()
	res := &failingResolver{clock: mock}

	cfg := config.DefaultDiscoveryConfig()
	cfg.BootstrapMinBackoff = config.Duration(time.Second)
	cfg.BootstrapMaxBackoff = config.Duration(4 * time.Second)

	peers, err := ParsePeers([]string{"/dnsaddr/bootstrap.example"})
	require.NoError(t, err)
	svc := New(a, peers, cfg, nil, WithClock(mock), WithResolver(res))
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Stop() })

	testutil.Eventually(t, 5*time.Second, func() bool {
		mock.Add(500 * time.Millisecond)
		return len(res.times()) >= 5
	}, "resolver should be retried")

	calls := res.times()
	gaps := make([]time.Duration, 0, len(calls)-1)
	for i := 1; i < len(calls); i++ {
		gaps = append(gaps, calls[i].Sub(calls[i-1]))
	}
	assert.GreaterOrEqual(t, gaps[0], time.Second)
	assert.GreaterOrEqual(t, gaps[1], 2*time.Second)
	assert.GreaterOrEqual(t, gaps[2], 4*time.Second)
	// 上限之后不再增长
	assert.Less(t, gaps[3], 8*time.Second)
}

func TestService_SkipsUndialableSeeds(t *testing.T) {
	a := testutil.NewHost(t)
	b := testutil.NewHost(t)

	// 只有 TCP 传输的主机拨不了 webrtc-direct 种子
	seeds, err := ParsePeers([]string{config.WebRTCBootstrapNode})
	require.NoError(t, err)
	require.Len(t, seeds, 1)

	info := b.Info()
	info.Addrs = append(append([]multiaddr.Multiaddr(nil), info.Addrs...), multiaddr.StringCast("/ip4/127.0.0.1/udp/9090/webrtc-direct"))
	peers := append(seeds, Peer{Info: info})

	svc := New(a, peers, config.DefaultDiscoveryConfig(), nil)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Stop() })

	active := svc.Active()
	require.Len(t, active, 1)
	assert.Equal(t, b.ID(), active[0].Info.ID)
	assert.Len(t, active[0].Info.Addrs, len(b.Info().Addrs))
	assert.Len(t, svc.Peers(), 2)

	testutil.Eventually(t, 5*time.Second, func() bool {
		return a.Network().Connected(b.ID())
	}, "dialable bootstrap peer should still be connected")
}
