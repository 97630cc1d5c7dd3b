package pbwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestRange(t *testing.T) {
	var b []byte
	b = AppendString(b, 1, "hello")
	b = AppendVarint(b, 2, 300)
	b = protowire.AppendTag(b, 3, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 7)
	b = AppendBool(b, 4, true)

	var got []Field
	require.NoError(t, Range(b, func(f Field) error {
		got = append(got, f)
		return nil
	}))

	require.Len(t, got, 3)
	assert.Equal(t, "hello", string(got[0].Bytes))
	assert.EqualValues(t, 300, got[1].Varint)
	assert.EqualValues(t, 4, got[2].Num)
	assert.EqualValues(t, 1, got[2].Varint)
}

func TestRange_Malformed(t *testing.T) {
	b := AppendString(nil, 1, "hello")
	err := Range(b[:len(b)-2], func(Field) error { return nil })
	assert.ErrorIs(t, err, ErrMalformed)

	err = Range([]byte{0xff}, func(Field) error { return nil })
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestCopy(t *testing.T) {
	assert.Nil(t, Copy(nil))
	src := []byte{1, 2}
	dst := Copy(src)
	dst[0] = 9
	assert.Equal(t, byte(1), src[0])
}
