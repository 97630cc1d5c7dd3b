package addrbook

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-ucnode/internal/core/eventbus"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

func newTestBook(t *testing.T) *Book {
	t.Helper()
	b, err := New(types.PeerID("self"), eventbus.NewBus(), log.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func set(ss ...string) types.AddressSet {
	out := make(types.AddressSet, len(ss))
	for i, s := range ss {
		out[i] = multiaddr.StringCast(s)
	}
	return out
}

func TestBook_Update(t *testing.T) {
	b := newTestBook(t)

	assert.False(t, b.Update(nil), "空集合不算变化")
	assert.True(t, b.Update(set("/ip4/1.1.1.1/tcp/1")))
	assert.False(t, b.Update(set("/ip4/1.1.1.1/tcp/1", "/ip4/1.1.1.1/tcp/1")), "去重后相同")
	assert.True(t, b.Update(set("/ip4/1.1.1.1/tcp/1", "/ip4/2.2.2.2/tcp/1")))
	assert.Equal(t, []string{"/ip4/1.1.1.1/tcp/1", "/ip4/2.2.2.2/tcp/1"}, b.Snapshot().Strings())
}

func TestBook_SnapshotIsFrozen(t *testing.T) {
	b := newTestBook(t)
	in := set("/ip4/1.1.1.1/tcp/1")
	b.Update(in)

	snap := b.Snapshot()
	in[0] = multiaddr.StringCast("/ip4/9.9.9.9/tcp/9")
	snap[0] = multiaddr.StringCast("/ip4/8.8.8.8/tcp/8")
	assert.Equal(t, []string{"/ip4/1.1.1.1/tcp/1"}, b.Snapshot().Strings())
}

// TestBook_ObserversReceiveInOrder 每个观察者按变化顺序收到快照
func TestBook_ObserversReceiveInOrder(t *testing.T) {
	b := newTestBook(t)

	const n = 50
	var mu sync.Mutex
	got := map[int][]int{}
	var wg sync.WaitGroup
	for o := 0; o < 3; o++ {
		o := o
		wg.Add(1)
		cancel := b.OnLocalAddressesChanged(func(evt types.EvtLocalAddressesChanged) {
			mu.Lock()
			got[o] = append(got[o], len(evt.Addrs))
			done := len(got[o]) == n
			mu.Unlock()
			if done {
				wg.Done()
			}
		})
		defer cancel()
	}

	var addrs []string
	for i := 0; i < n; i++ {
		addrs = append(addrs, "/ip4/10.0.0.1/tcp/"+strconv.Itoa(i+1))
		require.True(t, b.Update(set(addrs...)))
	}

	waitOrFail(t, &wg)
	for o := 0; o < 3; o++ {
		for i, l := range got[o] {
			require.Equal(t, i+1, l)
		}
	}
}

func TestBook_EventDiff(t *testing.T) {
	b := newTestBook(t)
	events := make(chan types.EvtLocalAddressesChanged, 4)
	cancel := b.OnLocalAddressesChanged(func(evt types.EvtLocalAddressesChanged) { events <- evt })
	defer cancel()

	b.Update(set("/ip4/1.1.1.1/tcp/1", "/ip4/2.2.2.2/tcp/1"))
	b.Update(set("/ip4/2.2.2.2/tcp/1", "/ip4/3.3.3.3/tcp/1"))

	first := recv(t, events)
	assert.Equal(t, types.PeerID("self"), first.Peer)
	assert.Len(t, first.Added, 2)

	second := recv(t, events)
	require.Len(t, second.Added, 1)
	require.Len(t, second.Removed, 1)
	assert.Equal(t, "/ip4/3.3.3.3/tcp/1", second.Added[0].String())
	assert.Equal(t, "/ip4/1.1.1.1/tcp/1", second.Removed[0].String())
}

func TestBook_LateObserverGetsCurrent(t *testing.T) {
	b := newTestBook(t)
	b.Update(set("/ip4/1.1.1.1/tcp/1"))

	events := make(chan types.EvtLocalAddressesChanged, 1)
	cancel := b.OnLocalAddressesChanged(func(evt types.EvtLocalAddressesChanged) { events <- evt })
	defer cancel()

	evt := recv(t, events)
	assert.Equal(t, []string{"/ip4/1.1.1.1/tcp/1"}, evt.Addrs.Strings())
}

func TestBook_Cancel(t *testing.T) {
	b := newTestBook(t)
	var mu sync.Mutex
	count := 0
	cancel := b.OnLocalAddressesChanged(func(types.EvtLocalAddressesChanged) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	cancel()
	cancel()

	b.Update(set("/ip4/1.1.1.1/tcp/1"))
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, count)
}

func TestBook_Closed(t *testing.T) {
	b := newTestBook(t)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.False(t, b.Update(set("/ip4/1.1.1.1/tcp/1")))
}

func recv(t *testing.T, ch <-chan types.EvtLocalAddressesChanged) types.EvtLocalAddressesChanged {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for address change")
		return types.EvtLocalAddressesChanged{}
	}
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for observers")
	}
}
