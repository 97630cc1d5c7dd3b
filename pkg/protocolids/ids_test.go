package protocolids

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dep2p/go-ucnode/pkg/types"
)

func TestDHT(t *testing.T) {
	assert.Equal(t, types.ProtocolID("/universal-connectivity/kad/1.0.0"), DHT("/universal-connectivity"))
	assert.Equal(t, types.ProtocolID("/universal-connectivity/kad/1.0.0"), DHT("/universal-connectivity/"))
	assert.Equal(t, types.ProtocolID("/ipfs/kad/1.0.0"), DHT(""))
}

func TestAll(t *testing.T) {
	seen := make(map[types.ProtocolID]bool)
	for _, id := range All() {
		assert.True(t, strings.HasPrefix(string(id), "/"), id)
		assert.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
}
