package pubsub

import (
	"context"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/core/msgid"
	"github.com/dep2p/go-ucnode/internal/testutil"
	"github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/types"
)

const testTopic = "universal-connectivity"

func newTestPubSub(t *testing.T, h *testutil.TestHost, mutate func(*config.PubSubConfig)) *PubSub {
	t.Helper()
	cfg := config.DefaultPubSubConfig()
	cfg.HeartbeatInterval = config.Duration(100 * time.Millisecond)
	if mutate != nil {
		mutate(&cfg)
	}
	ps := New(h, h.Priv, cfg, nil, WithMetrics(h.Metrics))
	t.Cleanup(func() { _ = ps.Close() })
	return ps
}

func startPubSub(t *testing.T, h *testutil.TestHost) *PubSub {
	t.Helper()
	ps := newTestPubSub(t, h, nil)
	require.NoError(t, ps.Start(context.Background()))
	return ps
}

func subscribe(t *testing.T, ps *PubSub) interfaces.TopicSubscription {
	t.Helper()
	sub, err := ps.Subscribe(testTopic)
	require.NoError(t, err)
	t.Cleanup(sub.Cancel)
	return sub
}

func next(t *testing.T, sub interfaces.TopicSubscription) *types.GossipMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg, err := sub.Next(ctx)
	require.NoError(t, err)
	return msg
}

func waitTopicPeer(t *testing.T, ps *PubSub, p types.PeerID) {
	t.Helper()
	testutil.Eventually(t, 5*time.Second, func() bool {
		for _, q := range ps.ListPeers(testTopic) {
			if q == p {
				return true
			}
		}
		return false
	}, "peer subscription not announced")
}

func TestPubSub_PublishDelivers(t *testing.T) {
	a, b := testutil.NewHost(t), testutil.NewHost(t)
	psA, psB := startPubSub(t, a), startPubSub(t, b)
	subA, subB := subscribe(t, psA), subscribe(t, psB)

	testutil.Connect(t, a, b)
	waitTopicPeer(t, psA, b.ID())

	require.NoError(t, psA.Publish(context.Background(), testTopic, []byte("hello")))

	got := next(t, subB)
	assert.Equal(t, []byte("hello"), got.Data)
	assert.Equal(t, a.ID(), got.From)
	assert.Equal(t, a.ID(), got.ReceivedFrom)
	assert.Equal(t, testTopic, got.Topic)
	assert.NotEmpty(t, got.Signature)

	own := next(t, subA)
	assert.Equal(t, got.Seqno, own.Seqno)

	assert.Equal(t, 1.0, promtest.ToFloat64(a.Metrics.GossipPublished.WithLabelValues(testTopic)))
	assert.Equal(t, 1.0, promtest.ToFloat64(b.Metrics.GossipDelivered.WithLabelValues(testTopic)))
}

func TestPubSub_ForwardsAlongChain(t *testing.T) {
	a, b, c := testutil.NewHost(t), testutil.NewHost(t), testutil.NewHost(t)
	psA, psB, psC := startPubSub(t, a), startPubSub(t, b), startPubSub(t, c)
	subscribe(t, psA)
	subB := subscribe(t, psB)
	subC := subscribe(t, psC)

	testutil.Connect(t, a, b)
	testutil.Connect(t, b, c)
	waitTopicPeer(t, psA, b.ID())
	waitTopicPeer(t, psB, c.ID())

	require.NoError(t, psA.Publish(context.Background(), testTopic, []byte("relay me")))

	assert.Equal(t, []byte("relay me"), next(t, subB).Data)
	got := next(t, subC)
	assert.Equal(t, []byte("relay me"), got.Data)
	assert.Equal(t, a.ID(), got.From)
	assert.Equal(t, b.ID(), got.ReceivedFrom)
}

func TestPubSub_ZeroPeers(t *testing.T) {
	t.Run("allowed", func(t *testing.T) {
		h := testutil.NewHost(t)
		ps := startPubSub(t, h)
		assert.NoError(t, ps.Publish(context.Background(), testTopic, []byte("x")))
	})

	t.Run("rejected", func(t *testing.T) {
		h := testutil.NewHost(t)
		ps := newTestPubSub(t, h, func(c *config.PubSubConfig) { c.AllowPublishToZeroPeers = false })
		require.NoError(t, ps.Start(context.Background()))
		assert.ErrorIs(t, ps.Publish(context.Background(), testTopic, []byte("x")), ErrNoPeers)
	})
}

func TestPubSub_PublishReachesEveryPeer(t *testing.T) {
	h := testutil.NewHost(t)
	ps := startPubSub(t, h)

	full, free := newPeerState("full-peer"), newPeerState("free-peer")
	for i := 0; i < cap(full.queue); i++ {
		full.queue <- nil
	}
	ps.mu.Lock()
	ps.peers[full.id], ps.peers[free.id] = full, free
	ps.topics[testTopic] = map[types.PeerID]struct{}{full.id: {}, free.id: {}}
	ps.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ps.Publish(ctx, testTopic, []byte("x"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "full-peer")
	assert.NotContains(t, err.Error(), "free-peer")
	assert.NotEmpty(t, free.queue, "peer with room must still receive the message")
}

func TestPubSub_DuplicatePublish(t *testing.T) {
	for _, ignore := range []bool{true, false} {
		h := testutil.NewHost(t)
		ps := newTestPubSub(t, h, func(c *config.PubSubConfig) { c.IgnoreDuplicatePublishError = ignore })
		require.NoError(t, ps.Start(context.Background()))

		// 另一个发布者已用掉下一个序列号
		ps.markSeen(msgid.FromSeqno(ps.seqno.Load() + 1).Key())

		err := ps.Publish(context.Background(), testTopic, []byte("x"))
		if ignore {
			assert.NoError(t, err)
		} else {
			assert.ErrorIs(t, err, ErrDuplicateMessage)
		}
		assert.Equal(t, 1.0, promtest.ToFloat64(h.Metrics.GossipDuplicate.WithLabelValues(testTopic)))
	}
}

func TestPubSub_DedupBySeqnoOnly(t *testing.T) {
	h := testutil.NewHost(t)
	ps := newTestPubSub(t, h, nil)
	sub := subscribe(t, ps)

	privA, fromA := testPeerID(t)
	privB, fromB := testPeerID(t)
	m1 := &types.GossipMessage{From: fromA, Data: []byte("first"), Seqno: 42, Topic: testTopic}
	m2 := &types.GossipMessage{From: fromB, Data: []byte("second"), Seqno: 42, Topic: testTopic}
	require.NoError(t, signMessage(privA, m1))
	require.NoError(t, signMessage(privB, m2))

	ps.handleMessage(fromA, m1)
	ps.handleMessage(fromB, m2)

	assert.Equal(t, []byte("first"), next(t, sub).Data)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := sub.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1.0, promtest.ToFloat64(h.Metrics.GossipDuplicate.WithLabelValues(testTopic)))
}

func TestPubSub_CustomMessageIDFn(t *testing.T) {
	h := testutil.NewHost(t)
	calls := 0
	ps := New(h, h.Priv, config.DefaultPubSubConfig(), nil, WithMessageIDFn(func(m msgid.SeqnoMessage) msgid.Fingerprint {
		calls++
		// 每条消息都不同
		return msgid.FromSeqno(uint64(calls))
	}))
	t.Cleanup(func() { _ = ps.Close() })
	sub := subscribe(t, ps)

	priv, from := testPeerID(t)
	for i := 0; i < 2; i++ {
		m := &types.GossipMessage{From: from, Data: []byte("same"), Seqno: 1, Topic: testTopic}
		require.NoError(t, signMessage(priv, m))
		ps.handleMessage(from, m)
	}
	next(t, sub)
	next(t, sub)
	assert.Equal(t, 2, calls)
}

func TestPubSub_SignaturePolicy(t *testing.T) {
	_, from := testPeerID(t)
	unsigned := func() *types.GossipMessage {
		return &types.GossipMessage{From: from, Data: []byte("x"), Seqno: 9, Topic: testTopic}
	}

	t.Run("strict-sign rejects unsigned", func(t *testing.T) {
		h := testutil.NewHost(t)
		ps := newTestPubSub(t, h, nil)
		sub := subscribe(t, ps)

		ps.handleMessage(from, unsigned())

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, err := sub.Next(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1.0, promtest.ToFloat64(h.Metrics.GossipRejected.WithLabelValues("invalid_signature")))
	})

	t.Run("strict-no-sign accepts unsigned", func(t *testing.T) {
		h := testutil.NewHost(t)
		ps := newTestPubSub(t, h, func(c *config.PubSubConfig) {
			c.SignaturePolicy = config.SignaturePolicyStrictNoSign
		})
		sub := subscribe(t, ps)

		ps.handleMessage(from, unsigned())
		assert.Equal(t, []byte("x"), next(t, sub).Data)

		signed := unsigned()
		signed.Seqno++
		signed.Signature = []byte{1}
		ps.handleMessage(from, signed)
		assert.Equal(t, 1.0, promtest.ToFloat64(h.Metrics.GossipRejected.WithLabelValues("unexpected_signature")))
	})
}

func TestPubSub_UnsubscribedTopicIgnored(t *testing.T) {
	h := testutil.NewHost(t)
	ps := newTestPubSub(t, h, nil)
	priv, from := testPeerID(t)

	m := &types.GossipMessage{From: from, Data: []byte("x"), Seqno: 1, Topic: "other"}
	require.NoError(t, signMessage(priv, m))
	ps.handleMessage(from, m)

	assert.False(t, ps.isSeen(msgid.FromSeqno(1).Key()))
}

func TestPubSub_SubscribeCancel(t *testing.T) {
	a, b := testutil.NewHost(t), testutil.NewHost(t)
	psA, psB := startPubSub(t, a), startPubSub(t, b)
	subscribe(t, psB)

	sub, err := psA.Subscribe(testTopic)
	require.NoError(t, err)
	assert.Equal(t, testTopic, sub.Topic())
	assert.Equal(t, []string{testTopic}, psA.GetTopics())

	testutil.Connect(t, a, b)
	waitTopicPeer(t, psB, a.ID())

	sub.Cancel()
	sub.Cancel()
	_, err = sub.Next(context.Background())
	assert.ErrorIs(t, err, ErrSubscriptionCancelled)
	assert.Empty(t, psA.GetTopics())

	testutil.Eventually(t, 5*time.Second, func() bool {
		return len(psB.ListPeers(testTopic)) == 0
	}, "unsubscribe not announced")
}

func TestPubSub_InvalidTopic(t *testing.T) {
	h := testutil.NewHost(t)
	ps := startPubSub(t, h)

	_, err := ps.Subscribe("")
	assert.ErrorIs(t, err, ErrInvalidTopic)
	assert.ErrorIs(t, ps.Publish(context.Background(), "", nil), ErrInvalidTopic)
}

func TestPubSub_MessageTooLarge(t *testing.T) {
	h := testutil.NewHost(t)
	ps := newTestPubSub(t, h, func(c *config.PubSubConfig) { c.MaxMessageSize = 128 })
	require.NoError(t, ps.Start(context.Background()))

	err := ps.Publish(context.Background(), testTopic, make([]byte, 256))
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestPubSub_Lifecycle(t *testing.T) {
	h := testutil.NewHost(t)
	ps := newTestPubSub(t, h, nil)

	assert.ErrorIs(t, ps.Publish(context.Background(), testTopic, []byte("x")), ErrNotStarted)
	require.NoError(t, ps.Start(context.Background()))
	assert.ErrorIs(t, ps.Start(context.Background()), ErrAlreadyStarted)

	sub := subscribe(t, ps)
	require.NoError(t, ps.Close())
	require.NoError(t, ps.Close())

	_, err := sub.Next(context.Background())
	assert.ErrorIs(t, err, ErrSubscriptionCancelled)
	assert.ErrorIs(t, ps.Publish(context.Background(), testTopic, []byte("x")), ErrClosed)
	_, err = ps.Subscribe(testTopic)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, ps.Start(context.Background()), ErrClosed)
}
