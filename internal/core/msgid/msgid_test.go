package msgid

import (
	"crypto/sha256"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-ucnode/pkg/types"
)

func TestFromSeqno_KnownVectors(t *testing.T) {
	tests := []struct {
		seqno uint64
		text  string
	}{
		{0, "0"},
		{1, "1"},
		{42, "42"},
		{1700000000000, "1700000000000"},
		{18446744073709551615, "18446744073709551615"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			want := sha256.Sum256([]byte(tt.text))
			assert.Equal(t, Fingerprint(want), FromSeqno(tt.seqno))
		})
	}

	// sha256("1")
	assert.Equal(t, "6b86b273ff34fce19d6b804eff5a3f5747ada4eaa22f1d49c01e52ddb7875b4b", FromSeqno(1).String())
}

func TestCompute_Deterministic(t *testing.T) {
	msg := &types.GossipMessage{Seqno: 12345}
	first := Compute(msg)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, Compute(msg))
	}
}

func TestCompute_Distinct(t *testing.T) {
	seen := make(map[Fingerprint]uint64, 10000)
	for n := uint64(0); n < 10000; n++ {
		f := FromSeqno(n)
		prev, dup := seen[f]
		require.False(t, dup, "collision between %d and %d", prev, n)
		seen[f] = n
	}
}

// TestCompute_IndependentOfPayloadAndPath 负载与到达路径不影响标识
func TestCompute_IndependentOfPayloadAndPath(t *testing.T) {
	a := &types.GossipMessage{From: "peer-a", Seqno: 7, Data: []byte("hello"), ReceivedFrom: "relay-1"}
	b := &types.GossipMessage{From: "peer-a", Seqno: 7, Data: []byte("different payload"), ReceivedFrom: "relay-2", Signature: []byte{1}}
	assert.Equal(t, Compute(a), Compute(b))
}

func TestCompute_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	want := FromSeqno(99)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, want, Default(&types.GossipMessage{Seqno: 99}))
			}
		}()
	}
	wg.Wait()
}

func TestByName(t *testing.T) {
	f, ok := ByName("seqno")
	require.True(t, ok)
	assert.Equal(t, FromSeqno(3), f(&types.GossipMessage{Seqno: 3}))

	_, ok = ByName("")
	assert.True(t, ok)

	_, ok = ByName("payload")
	assert.False(t, ok)
}
