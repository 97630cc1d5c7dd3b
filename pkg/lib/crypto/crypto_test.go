package crypto

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 确定性随机源
func seedReader(b byte) *bytes.Reader {
	return bytes.NewReader(bytes.Repeat([]byte{b}, 64))
}

func TestEd25519_SignVerify(t *testing.T) {
	priv, pub, err := GenerateEd25519Key(seedReader(1))
	require.NoError(t, err)

	sig, err := priv.Sign([]byte("hello"))
	require.NoError(t, err)

	ok, err := pub.Verify([]byte("hello"), sig)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = pub.Verify([]byte("hello!"), sig)
	assert.False(t, ok)

	ok, _ = pub.Verify([]byte("hello"), sig[:10])
	assert.False(t, ok)

	assert.True(t, priv.GetPublic().Equals(pub))
}

func TestMarshalRoundTrip(t *testing.T) {
	priv, pub, err := GenerateEd25519Key(seedReader(2))
	require.NoError(t, err)

	t.Run("公钥", func(t *testing.T) {
		data, err := MarshalPublicKey(pub)
		require.NoError(t, err)
		// Type=1 (0x08 0x01), Data (0x12 0x20 ...)
		assert.Equal(t, []byte{0x08, 0x01, 0x12, 0x20}, data[:4])
		assert.Len(t, data, 36)

		got, err := UnmarshalPublicKey(data)
		require.NoError(t, err)
		assert.True(t, got.Equals(pub))
	})

	t.Run("私钥", func(t *testing.T) {
		data, err := MarshalPrivateKey(priv)
		require.NoError(t, err)
		got, err := UnmarshalPrivateKey(data)
		require.NoError(t, err)
		assert.True(t, got.Equals(priv))
	})

	t.Run("不支持的类型", func(t *testing.T) {
		_, err := UnmarshalPublicKey([]byte{0x08, 0x02, 0x12, 0x01, 0x00})
		assert.ErrorIs(t, err, ErrBadKeyType)
	})

	t.Run("截断数据", func(t *testing.T) {
		_, err := UnmarshalPublicKey([]byte{0x08})
		assert.ErrorIs(t, err, ErrUnmarshalFailed)
	})
}

func TestPeerID(t *testing.T) {
	priv, pub, err := GenerateEd25519Key(seedReader(3))
	require.NoError(t, err)

	id, err := PeerIDFromPrivateKey(priv)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id.String(), "12D3KooW"), id.String())
	assert.True(t, PeerIDMatchesPublicKey(id, pub))

	extracted, err := PublicKeyFromPeerID(id)
	require.NoError(t, err)
	assert.True(t, extracted.Equals(pub))

	_, other, err := GenerateEd25519Key(seedReader(4))
	require.NoError(t, err)
	assert.False(t, PeerIDMatchesPublicKey(id, other))
}

func TestKeyFile(t *testing.T) {
	dir := t.TempDir()
	priv, _, err := GenerateKeyPair()
	require.NoError(t, err)

	t.Run("明文", func(t *testing.T) {
		path := filepath.Join(dir, "plain.key")
		require.NoError(t, SaveKeyFile(path, priv, nil))
		got, err := LoadKeyFile(path, nil)
		require.NoError(t, err)
		assert.True(t, got.Equals(priv))
	})

	t.Run("加密", func(t *testing.T) {
		path := filepath.Join(dir, "enc.key")
		require.NoError(t, SaveKeyFile(path, priv, []byte("secret")))

		_, err := LoadKeyFile(path, nil)
		assert.ErrorIs(t, err, ErrPasswordRequired)

		_, err = LoadKeyFile(path, []byte("wrong"))
		assert.ErrorIs(t, err, ErrDecryptionFailed)

		got, err := LoadKeyFile(path, []byte("secret"))
		require.NoError(t, err)
		assert.True(t, got.Equals(priv))
	})

	t.Run("不存在时创建", func(t *testing.T) {
		path := filepath.Join(dir, "sub", "node.key")
		first, err := LoadOrCreateKeyFile(path, nil)
		require.NoError(t, err)
		second, err := LoadOrCreateKeyFile(path, nil)
		require.NoError(t, err)
		assert.True(t, first.Equals(second))
	})

	t.Run("格式错误", func(t *testing.T) {
		_, err := decodeKeyFile([]byte("not a key file"), nil)
		assert.ErrorIs(t, err, ErrInvalidKeyFile)
	})
}
