package ping

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/testutil"
)

func TestPing_RoundTrip(t *testing.T) {
	a := testutil.NewHost(t)
	b := testutil.NewHost(t)

	cfg := config.DefaultLivenessConfig()
	sa := NewService(a, cfg, nil)
	sb := NewService(b, cfg, nil)
	require.NoError(t, sb.Start(context.Background()))
	defer sb.Stop()

	a.Peerstore().AddAddrs(b.ID(), b.Info().Addrs, time.Minute)

	rtt, err := sa.Ping(context.Background(), b.ID())
	require.NoError(t, err)
	assert.Greater(t, rtt, time.Duration(0))
}

func TestPing_NotSupported(t *testing.T) {
	a := testutil.NewHost(t)
	b := testutil.NewHost(t)
	testutil.Connect(t, a, b)

	sa := NewService(a, config.DefaultLivenessConfig(), nil)
	_, err := sa.Ping(context.Background(), b.ID())
	assert.Error(t, err)
}

func TestPing_OutboundLimit(t *testing.T) {
	a := testutil.NewHost(t)
	cfg := config.DefaultLivenessConfig()
	cfg.MaxOutboundStreams = 1
	s := NewService(a, cfg, nil)

	require.True(t, s.outSem.TryAcquire(1))
	defer s.outSem.Release(1)
	_, err := s.Ping(context.Background(), a.ID())
	assert.ErrorIs(t, err, ErrTooManyPings)
}

// mismatchConn 回显被篡改的数据
type mismatchConn struct {
	buf bytes.Buffer
}

func (c *mismatchConn) Write(p []byte) (int, error) {
	q := append([]byte(nil), p...)
	q[0] ^= 0xff
	return c.buf.Write(q)
}

func (c *mismatchConn) Read(p []byte) (int, error) { return c.buf.Read(p) }

func TestPingOnce(t *testing.T) {
	t.Run("echo", func(t *testing.T) {
		c1, c2 := net.Pipe()
		defer c1.Close()
		defer c2.Close()
		go func() { _, _ = io.Copy(c2, c2) }()

		_, err := pingOnce(c1, time.Now().Add(time.Second))
		require.NoError(t, err)
	})

	t.Run("mismatch", func(t *testing.T) {
		_, err := pingOnce(&mismatchConn{}, time.Now().Add(time.Second))
		assert.ErrorIs(t, err, ErrDataMismatch)
	})

	t.Run("deadline", func(t *testing.T) {
		c1, c2 := net.Pipe()
		defer c1.Close()
		defer c2.Close()
		go func() {
			buf := make([]byte, PingSize)
			_, _ = io.ReadFull(c2, buf)
		}()
		_, err := pingOnce(c1, time.Now().Add(50*time.Millisecond))
		assert.Error(t, err)
	})
}
