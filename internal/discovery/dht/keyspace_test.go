package dht

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommonPrefixLen(t *testing.T) {
	var a, b Key
	assert.Equal(t, KeyBits, CommonPrefixLen(a, b))

	b[0] = 0x80
	assert.Equal(t, 0, CommonPrefixLen(a, b))

	b[0] = 0x01
	assert.Equal(t, 7, CommonPrefixLen(a, b))

	b[0] = 0
	b[2] = 0x10
	assert.Equal(t, 19, CommonPrefixLen(a, b))
}

func TestCloser(t *testing.T) {
	var target, near, far Key
	near[31] = 1
	far[0] = 1
	assert.True(t, Closer(near, far, target))
	assert.False(t, Closer(far, near, target))
	assert.False(t, Closer(near, near, target))
}

func TestKeyForBytes_SHA256(t *testing.T) {
	// sha256("")
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		KeyForBytes(nil).String())
}
