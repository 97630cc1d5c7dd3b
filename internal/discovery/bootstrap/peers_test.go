package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-ucnode/config"
)

func TestParsePeers(t *testing.T) {
	t.Run("default bootstrap nodes merge into one peer", func(t *testing.T) {
		peers, err := ParsePeers([]string{config.WebRTCBootstrapNode, config.WebTransportBootstrapNode})
		require.NoError(t, err)
		require.Len(t, peers, 1)
		assert.Equal(t, "12D3KooWSmtsbL2ukwVwf8gDoTYZHnCd7sVNNVdMnCa4MkWjLujm", peers[0].Info.ID.String())
		assert.Len(t, peers[0].Info.Addrs, 2)
		assert.Nil(t, peers[0].DNSAddr)
	})

	t.Run("dnsaddr kept unresolved", func(t *testing.T) {
		peers, err := ParsePeers([]string{"/dnsaddr/bootstrap.example.org"})
		require.NoError(t, err)
		require.Len(t, peers, 1)
		require.NotNil(t, peers[0].DNSAddr)
		assert.Equal(t, "/dnsaddr/bootstrap.example.org", peers[0].Name())
	})

	t.Run("missing peer id", func(t *testing.T) {
		_, err := ParsePeers([]string{"/ip4/1.2.3.4/tcp/4001"})
		assert.ErrorIs(t, err, ErrInvalidBootstrapAddr)
	})

	t.Run("unparsable address", func(t *testing.T) {
		_, err := ParsePeers([]string{"not-an-address"})
		assert.Error(t, err)
	})

	t.Run("empty list", func(t *testing.T) {
		peers, err := ParsePeers(nil)
		require.NoError(t, err)
		assert.Empty(t, peers)
	})
}
