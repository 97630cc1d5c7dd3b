package multiaddr

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPeerID = "12D3KooWSmtsbL2ukwVwf8gDoTYZHnCd7sVNNVdMnCa4MkWjLujm"

// TestNewMultiaddr 测试从字符串创建多地址
func TestNewMultiaddr(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{"IPv4 + TCP", "/ip4/127.0.0.1/tcp/4001", false},
		{"IPv6 + TCP", "/ip6/::1/tcp/4001", false},
		{"IPv4 + UDP + QUIC", "/ip4/192.168.1.1/udp/4001/quic-v1", false},
		{"带 P2P", "/ip4/1.2.3.4/tcp/4001/p2p/" + testPeerID, false},
		{"中继 + WebRTC", "/ip4/1.2.3.4/tcp/4001/p2p/" + testPeerID + "/p2p-circuit/webrtc/p2p/" + testPeerID, false},
		{"WebRTC Direct + certhash", "/ip4/18.195.246.16/udp/9090/webrtc-direct/certhash/uEiA8EDMfADmULSe2Bm1vVDSmN2RQPvY5MXkEZVOSyD1y2w", false},
		{"DNS + WSS", "/dns4/example.com/tcp/443/wss", false},
		{"unix 路径", "/unix/tmp/node.sock", false},
		{"空字符串", "", true},
		{"缺少前导斜杠", "ip4/127.0.0.1", true},
		{"未知协议", "/unknown/value", true},
		{"缺少值", "/ip4", true},
		{"非法 IPv4", "/ip4/300.1.1.1/tcp/1", true},
		{"非法端口", "/ip4/1.1.1.1/tcp/70000", true},
		{"非法 PeerID", "/p2p/not-base58!", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMultiaddr(tt.addr)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidMultiaddr)
				return
			}
			require.NoError(t, err)
		})
	}
}

// TestParseError 测试解析错误携带原始输入
func TestParseError(t *testing.T) {
	_, err := NewMultiaddr("/ip4/1.2.3.4/tcp/abc")
	require.Error(t, err)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "/ip4/1.2.3.4/tcp/abc", pe.Input)
	assert.Contains(t, pe.Error(), "tcp")

	_, err = NewMultiaddr("/foo")
	require.True(t, errors.As(err, &pe))
	assert.ErrorIs(t, err, ErrUnknownProtocol)
}

// TestMultiaddr_StringRoundTrip 测试字符串与二进制往返
func TestMultiaddr_StringRoundTrip(t *testing.T) {
	addrs := []string{
		"/ip4/127.0.0.1/tcp/4001",
		"/ip6/2001:db8::1/udp/4001/quic-v1",
		"/dns4/relay.example.com/tcp/443/wss/p2p/" + testPeerID,
		"/ip4/1.2.3.4/udp/9095/quic-v1/webtransport/certhash/uEiAnrH0eWNQMtMlsdEZ8LLpgq6BYMrYbdUP1N8Hb-FJADw/p2p/" + testPeerID,
		"/ip4/1.2.3.4/tcp/4001/p2p/" + testPeerID + "/p2p-circuit/webrtc/p2p/" + testPeerID,
		"/unix/tmp/node.sock",
	}
	for _, s := range addrs {
		m, err := NewMultiaddr(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, m.String())

		m2, err := NewMultiaddrBytes(m.Bytes())
		require.NoError(t, err)
		assert.True(t, m.Equal(m2))
	}
}

// TestMultiaddr_Aliases 测试别名与尾部斜杠
func TestMultiaddr_Aliases(t *testing.T) {
	m, err := NewMultiaddr("/ip4/1.2.3.4/tcp/1/ipfs/" + testPeerID + "/")
	require.NoError(t, err)
	assert.Equal(t, "/ip4/1.2.3.4/tcp/1/p2p/"+testPeerID, m.String())
}

// TestNewMultiaddrBytes 测试从字节创建多地址
func TestNewMultiaddrBytes(t *testing.T) {
	t.Run("有效字节", func(t *testing.T) {
		// /ip4/127.0.0.1/tcp/4001
		m, err := NewMultiaddrBytes([]byte{0x04, 127, 0, 0, 1, 0x06, 0x0f, 0xa1})
		require.NoError(t, err)
		assert.Equal(t, "/ip4/127.0.0.1/tcp/4001", m.String())
	})

	t.Run("空字节", func(t *testing.T) {
		_, err := NewMultiaddrBytes(nil)
		assert.ErrorIs(t, err, ErrInvalidMultiaddr)
	})

	t.Run("未知协议代码", func(t *testing.T) {
		_, err := NewMultiaddrBytes([]byte{0xff, 0xff, 0x03})
		assert.ErrorIs(t, err, ErrInvalidMultiaddr)
	})

	t.Run("数据不足", func(t *testing.T) {
		_, err := NewMultiaddrBytes([]byte{0x04, 127, 0})
		assert.Error(t, err)
	})
}

// TestMultiaddr_ProtoCodes 测试协议代码列表
func TestMultiaddr_ProtoCodes(t *testing.T) {
	m := StringCast("/ip4/1.2.3.4/tcp/4001/p2p/" + testPeerID + "/p2p-circuit")
	assert.Equal(t, []int{P_IP4, P_TCP, P_P2P, P_CIRCUIT}, m.ProtoCodes())
	assert.True(t, m.HasProtocol(P_CIRCUIT))
	assert.False(t, m.HasProtocol(P_WEBRTC))
	assert.Equal(t, 290, P_CIRCUIT)

	names := make([]string, 0)
	for _, p := range m.Protocols() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"ip4", "tcp", "p2p", "p2p-circuit"}, names)
}

// TestMultiaddr_Encapsulate 测试封装与解封装
func TestMultiaddr_Encapsulate(t *testing.T) {
	base := StringCast("/ip4/1.2.3.4/tcp/4001")
	p2p := StringCast("/p2p/" + testPeerID)

	full := base.Encapsulate(p2p)
	assert.Equal(t, "/ip4/1.2.3.4/tcp/4001/p2p/"+testPeerID, full.String())
	assert.True(t, full.Decapsulate(p2p).Equal(base))

	t.Run("解封装移除最后一次出现及其后缀", func(t *testing.T) {
		m := StringCast("/ip4/1.2.3.4/tcp/1/p2p-circuit/webrtc")
		got := m.Decapsulate(StringCast("/p2p-circuit"))
		assert.Equal(t, "/ip4/1.2.3.4/tcp/1", got.String())
	})

	t.Run("不匹配时原样返回", func(t *testing.T) {
		assert.Equal(t, base, base.Decapsulate(StringCast("/udp/1")))
	})

	t.Run("完全移除返回 nil", func(t *testing.T) {
		assert.Nil(t, base.Decapsulate(StringCast("/ip4/1.2.3.4")))
	})

	t.Run("nil 参数", func(t *testing.T) {
		assert.Equal(t, base, base.Encapsulate(nil))
		assert.Equal(t, base, base.Decapsulate(nil))
	})
}

// TestMultiaddr_ValueForProtocol 测试取协议值
func TestMultiaddr_ValueForProtocol(t *testing.T) {
	m := StringCast("/ip4/1.2.3.4/udp/9090/webrtc-direct/p2p/" + testPeerID)

	v, err := m.ValueForProtocol(P_IP4)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.4", v)

	v, err = m.ValueForProtocol(P_P2P)
	require.NoError(t, err)
	assert.Equal(t, testPeerID, v)

	v, err = m.ValueForProtocol(P_WEBRTC_DIRECT)
	require.NoError(t, err)
	assert.Empty(t, v)

	_, err = m.ValueForProtocol(P_TCP)
	assert.ErrorIs(t, err, ErrProtocolNotFound)
}

// TestMultiaddr_JSON 测试 JSON 编解码
func TestMultiaddr_JSON(t *testing.T) {
	m := StringCast("/ip4/127.0.0.1/tcp/4001")
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `"/ip4/127.0.0.1/tcp/4001"`, string(data))

	var out multiaddr
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, out.Equal(m))

	assert.Error(t, json.Unmarshal([]byte(`"/bad"`), &out))
}

// TestCertHash 测试证书哈希多种 multibase 输入
func TestCertHash(t *testing.T) {
	u := StringCast("/certhash/uEiA8EDMfADmULSe2Bm1vVDSmN2RQPvY5MXkEZVOSyD1y2w")
	raw, err := certHashStringToBytes("uEiA8EDMfADmULSe2Bm1vVDSmN2RQPvY5MXkEZVOSyD1y2w")
	require.NoError(t, err)
	assert.Len(t, raw, 34)

	_, err = NewMultiaddr("/certhash/xabc")
	assert.Error(t, err)
	assert.True(t, u.HasProtocol(P_CERTHASH))
}
