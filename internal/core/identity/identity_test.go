package identity

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
)

func TestGenerate(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	assert.NotEqual(t, a.PeerID(), b.PeerID())
	assert.True(t, strings.HasPrefix(a.PeerID().String(), "12D3KooW"))
	assert.True(t, crypto.PeerIDMatchesPublicKey(a.PeerID(), a.PublicKey()))
}

func TestIdentity_Sign(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)

	sig, err := id.Sign([]byte("hello"))
	require.NoError(t, err)

	ok, err := Verify(id.PublicKey(), []byte("hello"), sig)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verify(id.PublicKey(), []byte("hellO"), sig)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = Verify(nil, nil, nil)
	assert.ErrorIs(t, err, crypto.ErrNilPublicKey)
}

func TestLoad(t *testing.T) {
	t.Run("ephemeral", func(t *testing.T) {
		id, err := Load(config.DefaultIdentityConfig())
		require.NoError(t, err)
		assert.False(t, id.PeerID().IsEmpty())
	})

	t.Run("no generate", func(t *testing.T) {
		_, err := Load(config.IdentityConfig{})
		assert.ErrorIs(t, err, ErrNoIdentity)
	})

	t.Run("missing file without generate", func(t *testing.T) {
		cfg := config.IdentityConfig{KeyFile: filepath.Join(t.TempDir(), "none.key")}
		_, err := Load(cfg)
		assert.ErrorIs(t, err, ErrNoIdentity)
	})

	t.Run("persistent", func(t *testing.T) {
		cfg := config.DefaultIdentityConfig().WithKeyFile(filepath.Join(t.TempDir(), "node.key"))
		cfg.Password = "secret"

		first, err := Load(cfg)
		require.NoError(t, err)
		second, err := Load(cfg)
		require.NoError(t, err)
		assert.Equal(t, first.PeerID(), second.PeerID())

		cfg.Password = ""
		_, err = Load(cfg)
		assert.Error(t, err)
	})
}

func TestNew_NilKey(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, crypto.ErrNilPrivateKey)
}
