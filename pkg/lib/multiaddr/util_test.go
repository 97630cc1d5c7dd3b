package multiaddr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSplitJoin 测试拆分与拼接
func TestSplitJoin(t *testing.T) {
	m := StringCast("/ip4/1.2.3.4/tcp/4001/p2p/" + testPeerID)
	parts := Split(m)
	require.Len(t, parts, 3)
	assert.Equal(t, "/tcp/4001", parts[1].String())
	assert.True(t, Join(parts...).Equal(m))
	assert.Nil(t, Join())
}

// TestSplitP2P 测试分离节点 ID
func TestSplitP2P(t *testing.T) {
	transport, id := SplitP2P(StringCast("/ip4/1.2.3.4/tcp/4001/p2p/" + testPeerID))
	assert.Equal(t, "/ip4/1.2.3.4/tcp/4001", transport.String())
	assert.Equal(t, testPeerID, id)

	transport, id = SplitP2P(StringCast("/ip4/1.2.3.4/tcp/4001"))
	assert.Equal(t, "/ip4/1.2.3.4/tcp/4001", transport.String())
	assert.Empty(t, id)

	m, err := WithP2P(transport, testPeerID)
	require.NoError(t, err)
	assert.Equal(t, "/ip4/1.2.3.4/tcp/4001/p2p/"+testPeerID, m.String())
}

// TestUniqueAddrs 测试去重
func TestUniqueAddrs(t *testing.T) {
	a := StringCast("/ip4/1.1.1.1/tcp/1")
	b := StringCast("/ip4/2.2.2.2/tcp/1")
	out := UniqueAddrs([]Multiaddr{a, b, StringCast("/ip4/1.1.1.1/tcp/1"), nil})
	assert.Equal(t, []string{a.String(), b.String()}, Strings(out))
}

// TestParseStrings 测试批量解析
func TestParseStrings(t *testing.T) {
	out, err := ParseStrings([]string{"/ip4/1.1.1.1/tcp/1", " ", "/ip6/::1/udp/2"})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	_, err = ParseStrings([]string{"/ip4/1.1.1.1/tcp/1", "garbage"})
	assert.ErrorIs(t, err, ErrInvalidMultiaddr)
}
