package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-ucnode/internal/util/pbwire"
	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/types"
)

func testPeerID(t *testing.T) (crypto.PrivateKey, types.PeerID) {
	t.Helper()
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	id, err := crypto.PeerIDFromPrivateKey(priv)
	require.NoError(t, err)
	return priv, id
}

func TestRPC_Encoding(t *testing.T) {
	_, from := testPeerID(t)
	in := &rpc{
		Subscriptions: []subOpts{
			{Subscribe: true, Topic: "universal-connectivity"},
			{Subscribe: false, Topic: "old"},
		},
		Publish: []*types.GossipMessage{{
			From:      from,
			Data:      []byte("hello"),
			Seqno:     0x0102030405060708,
			Topic:     "universal-connectivity",
			Signature: []byte{1, 2, 3},
		}},
	}

	var out rpc
	require.NoError(t, out.unmarshal(in.marshal()))
	require.Len(t, out.Subscriptions, 2)
	assert.Equal(t, in.Subscriptions, out.Subscriptions)
	require.Len(t, out.Publish, 1)
	assert.Equal(t, from, out.Publish[0].From)
	assert.Equal(t, []byte("hello"), out.Publish[0].Data)
	assert.Equal(t, uint64(0x0102030405060708), out.Publish[0].Seqno)
	assert.Equal(t, "universal-connectivity", out.Publish[0].Topic)
	assert.Equal(t, []byte{1, 2, 3}, out.Publish[0].Signature)
	assert.Empty(t, out.Publish[0].Key)
}

func TestRPC_SeqnoIsBigEndian(t *testing.T) {
	b := marshalMessage(&types.GossipMessage{Seqno: 1, Topic: "t"}, false)

	var seqno []byte
	require.NoError(t, pbwire.Range(b, func(f pbwire.Field) error {
		if f.Num == 3 {
			seqno = pbwire.Copy(f.Bytes)
		}
		return nil
	}))
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 1}, seqno)
}

func TestRPC_ShortSeqno(t *testing.T) {
	b := pbwire.AppendBytes(nil, 3, []byte{0x01, 0x00})
	b = pbwire.AppendString(b, 4, "t")

	m, err := unmarshalMessage(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(256), m.Seqno)

	_, err = unmarshalMessage(pbwire.AppendBytes(nil, 3, make([]byte, 9)))
	assert.ErrorIs(t, err, ErrInvalidSeqno)
}

func TestSign_Verify(t *testing.T) {
	priv, from := testPeerID(t)
	msg := &types.GossipMessage{From: from, Data: []byte("hi"), Seqno: 7, Topic: "t"}
	require.NoError(t, signMessage(priv, msg))
	assert.NotEmpty(t, msg.Signature)
	assert.Empty(t, msg.Key, "ed25519 keys are recoverable from the peer ID")
	assert.NoError(t, verifyMessage(msg))

	t.Run("tampered data", func(t *testing.T) {
		m := *msg
		m.Data = []byte("ho")
		assert.ErrorIs(t, verifyMessage(&m), ErrInvalidSignature)
	})

	t.Run("tampered seqno", func(t *testing.T) {
		m := *msg
		m.Seqno++
		assert.ErrorIs(t, verifyMessage(&m), ErrInvalidSignature)
	})

	t.Run("other sender", func(t *testing.T) {
		_, other := testPeerID(t)
		m := *msg
		m.From = other
		assert.ErrorIs(t, verifyMessage(&m), ErrInvalidSignature)
	})

	t.Run("unsigned", func(t *testing.T) {
		m := *msg
		m.Signature = nil
		assert.ErrorIs(t, verifyMessage(&m), ErrInvalidSignature)
	})

	t.Run("mismatched key", func(t *testing.T) {
		otherPriv, _ := testPeerID(t)
		key, err := crypto.MarshalPublicKey(otherPriv.GetPublic())
		require.NoError(t, err)
		m := *msg
		m.Key = key
		assert.ErrorIs(t, verifyMessage(&m), ErrInvalidSignature)
	})
}
