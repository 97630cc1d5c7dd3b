package framing

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRead(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMsg(&buf, []byte("hello")))
	require.NoError(t, WriteMsg(&buf, nil))
	require.NoError(t, WriteMsg(&buf, bytes.Repeat([]byte{1}, 300)))

	// 长度 300 需要两个字节的 uvarint
	assert.Equal(t, []byte{5}, buf.Bytes()[:1])

	r := NewReader(&buf, 0)
	msg, err := r.ReadMsg()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(msg))

	msg, err = r.ReadMsg()
	require.NoError(t, err)
	assert.Empty(t, msg)

	msg, err = r.ReadMsg()
	require.NoError(t, err)
	assert.Len(t, msg, 300)

	_, err = r.ReadMsg()
	assert.ErrorIs(t, err, io.EOF)
}

// TestReadMsg_NoReadAhead 消息后的原始字节不被消费
func TestReadMsg_NoReadAhead(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMsg(&buf, []byte("hdr")))
	buf.WriteString("raw-tail")

	src := struct{ io.Reader }{&buf}
	msg, err := ReadMsg(src, 16)
	require.NoError(t, err)
	assert.Equal(t, "hdr", string(msg))

	rest, err := io.ReadAll(src)
	require.NoError(t, err)
	assert.Equal(t, "raw-tail", string(rest))
}

func TestReadMsg_Errors(t *testing.T) {
	t.Run("too large", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteMsg(&buf, make([]byte, 32)))
		_, err := ReadMsg(&buf, 16)
		assert.ErrorIs(t, err, ErrMsgTooLarge)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := ReadMsg(bytes.NewReader([]byte{10, 'a'}), 16)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})
}
