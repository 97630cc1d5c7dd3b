package relayaddr

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

const (
	selfStr  = "12D3KooWSmtsbL2ukwVwf8gDoTYZHnCd7sVNNVdMnCa4MkWjLujm"
	relayStr = "12D3KooWFhXabKDwALpzqMbto94sB7rvmZ6M28hs9Y9xSopDKwQr"
)

func selfID(t *testing.T) types.PeerID {
	t.Helper()
	id, err := types.ParsePeerID(selfStr)
	require.NoError(t, err)
	return id
}

func TestDerive(t *testing.T) {
	self := selfID(t)
	relayAddr := "/ip4/147.75.80.110/tcp/4001/p2p/" + relayStr + "/p2p-circuit"

	t.Run("中继地址派生出 WebRTC 地址", func(t *testing.T) {
		addrs := []multiaddr.Multiaddr{
			multiaddr.StringCast("/ip4/127.0.0.1/tcp/4001"),
			multiaddr.StringCast(relayAddr),
		}
		out, err := Derive(addrs, self)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, relayAddr+"/webrtc/p2p/"+selfStr, out[0].String())
	})

	t.Run("每个中继地址一个输出", func(t *testing.T) {
		second := "/ip4/1.2.3.4/udp/4001/quic-v1/p2p/" + relayStr + "/p2p-circuit"
		out, err := DeriveStrings([]string{relayAddr, "/ip4/10.0.0.1/udp/1/quic-v1", second}, self)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, second+"/webrtc/p2p/"+selfStr, out[1].String())
	})

	t.Run("没有中继地址时无输出", func(t *testing.T) {
		out, err := DeriveStrings([]string{"/ip4/127.0.0.1/tcp/1", "/ip6/::1/udp/2/quic-v1"}, self)
		require.NoError(t, err)
		assert.Empty(t, out)

		out, err = Derive(nil, self)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("幂等", func(t *testing.T) {
		in := []multiaddr.Multiaddr{multiaddr.StringCast(relayAddr)}
		a, err := Derive(in, self)
		require.NoError(t, err)
		b, err := Derive(in, self)
		require.NoError(t, err)
		assert.True(t, a[0].Equal(b[0]))
	})

	t.Run("不修改输入", func(t *testing.T) {
		in := []multiaddr.Multiaddr{multiaddr.StringCast(relayAddr), multiaddr.StringCast("/ip4/1.1.1.1/tcp/1")}
		before := multiaddr.Strings(in)
		_, err := Derive(in, self)
		require.NoError(t, err)
		assert.Equal(t, before, multiaddr.Strings(in))
	})
}

func TestDerive_ParseErrors(t *testing.T) {
	self := selfID(t)

	t.Run("非法地址字符串", func(t *testing.T) {
		in := []string{"/ip4/1.2.3.4/tcp/4001/p2p-circuit", "/ip4/999.1.1.1/tcp/1/p2p-circuit"}
		snapshot := append([]string(nil), in...)
		_, err := DeriveStrings(in, self)
		require.Error(t, err)

		var pe *multiaddr.ParseError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "/ip4/999.1.1.1/tcp/1/p2p-circuit", pe.Input)
		assert.Equal(t, snapshot, in)
	})

	t.Run("拼接后无法解析", func(t *testing.T) {
		// 空 ID 会产生 "/webrtc/p2p/"，缺少值
		in := []multiaddr.Multiaddr{multiaddr.StringCast("/ip4/1.2.3.4/tcp/4001/p2p-circuit")}
		_, err := Derive(in, types.EmptyPeerID)
		require.Error(t, err)
		assert.ErrorIs(t, err, multiaddr.ErrInvalidMultiaddr)
		assert.Contains(t, err.Error(), "/ip4/1.2.3.4/tcp/4001/p2p-circuit")
	})
}

func TestDeriver(t *testing.T) {
	self := selfID(t)
	var buf bytes.Buffer
	d := NewDeriver(self, slog.New(slog.NewTextHandler(&buf, nil)))

	relayAddr := "/ip4/147.75.80.110/tcp/4001/p2p/" + relayStr + "/p2p-circuit"
	set := types.AddressSet{multiaddr.StringCast(relayAddr)}

	out, err := d.OnAddressesChanged(set)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Contains(t, buf.String(), "Listening on '"+relayAddr+"/webrtc/p2p/"+selfStr+"'")
	assert.Len(t, d.Addresses(), 1)

	t.Run("失败时保留上一次结果", func(t *testing.T) {
		bad := NewDeriver(types.EmptyPeerID, slog.New(slog.NewTextHandler(&buf, nil)))
		_, err := bad.OnAddressesChanged(set)
		assert.Error(t, err)
		assert.Empty(t, bad.Addresses())
	})

	t.Run("中继地址消失后清空", func(t *testing.T) {
		_, err := d.OnAddressesChanged(types.AddressSet{multiaddr.StringCast("/ip4/1.1.1.1/tcp/1")})
		require.NoError(t, err)
		assert.Empty(t, d.Addresses())
	})

	t.Run("并发调用", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := d.OnAddressesChanged(set)
				assert.NoError(t, err)
				_ = d.Addresses()
			}()
		}
		wg.Wait()
		assert.Len(t, d.Addresses(), 1)
	})
}
