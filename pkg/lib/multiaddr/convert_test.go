package multiaddr

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestToNetAddr 测试转换为标准库地址
func TestToNetAddr(t *testing.T) {
	tcp, err := StringCast("/ip4/127.0.0.1/tcp/4001").ToTCPAddr()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:4001", tcp.String())

	udp, err := StringCast("/ip6/::1/udp/4001/quic-v1").ToUDPAddr()
	require.NoError(t, err)
	assert.Equal(t, "[::1]:4001", udp.String())

	_, err = StringCast("/dns4/example.com/tcp/1").ToTCPAddr()
	assert.ErrorIs(t, err, ErrNoIPAddress)

	_, err = StringCast("/ip4/127.0.0.1/udp/1").ToTCPAddr()
	assert.Error(t, err)
}

// TestFromNetAddr 测试从标准库地址创建
func TestFromNetAddr(t *testing.T) {
	m, err := FromNetAddr(&net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 80})
	require.NoError(t, err)
	assert.Equal(t, "/ip4/10.0.0.1/tcp/80", m.String())

	m, err = FromNetAddr(&net.UDPAddr{IP: net.ParseIP("::1"), Port: 53})
	require.NoError(t, err)
	assert.Equal(t, "/ip6/::1/udp/53", m.String())

	_, err = FromNetAddr(nil)
	assert.Error(t, err)
}

// TestHostPort 测试拨号参数
func TestHostPort(t *testing.T) {
	network, hp, err := HostPort(StringCast("/dns4/example.com/tcp/443/wss"))
	require.NoError(t, err)
	assert.Equal(t, "tcp", network)
	assert.Equal(t, "example.com:443", hp)

	network, hp, err = HostPort(StringCast("/ip6/::1/udp/1/quic-v1"))
	require.NoError(t, err)
	assert.Equal(t, "udp", network)
	assert.Equal(t, "[::1]:1", hp)

	_, _, err = HostPort(StringCast("/p2p-circuit"))
	assert.Error(t, err)
}

// TestAddressClass 测试地址分类
func TestAddressClass(t *testing.T) {
	assert.True(t, IsLoopback(StringCast("/ip4/127.0.0.1/tcp/1")))
	assert.False(t, IsPublic(StringCast("/ip4/192.168.1.1/tcp/1")))
	assert.True(t, IsPublic(StringCast("/ip4/8.8.8.8/tcp/1")))
	assert.True(t, IsPublic(StringCast("/dns4/example.com/tcp/1")))
}
