package webrtc

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/core/relay/client"
	"github.com/dep2p/go-ucnode/internal/core/relay/server"
	"github.com/dep2p/go-ucnode/internal/testutil"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

const (
	relayID = "12D3KooWSmtsbL2ukwVwf8gDoTYZHnCd7sVNNVdMnCa4MkWjLujm"
	echo    = types.ProtocolID("/test/echo/1.0.0")
)

func TestSplitWebRTCAddr(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		circuit string
		dest    bool
		ok      bool
	}{
		{
			name:    "with destination",
			addr:    "/ip4/1.2.3.4/tcp/4001/p2p/" + relayID + "/p2p-circuit/webrtc/p2p/" + relayID,
			circuit: "/ip4/1.2.3.4/tcp/4001/p2p/" + relayID + "/p2p-circuit",
			dest:    true,
			ok:      true,
		},
		{
			name:    "without destination",
			addr:    "/ip4/1.2.3.4/tcp/4001/p2p/" + relayID + "/p2p-circuit/webrtc",
			circuit: "/ip4/1.2.3.4/tcp/4001/p2p/" + relayID + "/p2p-circuit",
			ok:      true,
		},
		{name: "plain circuit", addr: "/ip4/1.2.3.4/tcp/4001/p2p/" + relayID + "/p2p-circuit"},
		{name: "webrtc-direct", addr: "/ip4/1.2.3.4/udp/4001/webrtc-direct"},
		{name: "bare webrtc", addr: "/webrtc"},
		{name: "direct tcp", addr: "/ip4/1.2.3.4/tcp/4001/p2p/" + relayID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			circuit, dest, ok := splitWebRTCAddr(multiaddr.StringCast(tt.addr))
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.circuit, circuit.String())
			assert.Equal(t, tt.dest, dest != "")
		})
	}
}

func TestSignal_Encoding(t *testing.T) {
	in := signal{Type: signalOffer, Data: "v=0\r\n"}
	b := in.marshal()
	// 类型为 0 时仍写出字段 1
	assert.Equal(t, byte(0x08), b[0])

	var out signal
	require.NoError(t, out.unmarshal(b))
	assert.Equal(t, in, out)
	assert.Equal(t, "SDP_OFFER", out.Type.String())
}

func TestDecodeCandidate(t *testing.T) {
	_, done, err := decodeCandidate(endOfCandidates)
	require.NoError(t, err)
	assert.True(t, done)

	_, done, err = decodeCandidate(`{"candidate":""}`)
	require.NoError(t, err)
	assert.True(t, done)

	init, done, err := decodeCandidate(`{"candidate":"candidate:1 1 udp 2130706431 10.0.0.1 5000 typ host","sdpMid":"0"}`)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Contains(t, init.Candidate, "10.0.0.1")
	require.NotNil(t, init.SDPMid)
	assert.Equal(t, "0", *init.SDPMid)

	_, _, err = decodeCandidate("{")
	assert.Error(t, err)
}

func TestDeadline(t *testing.T) {
	d := newDeadline()

	d.set(time.Now().Add(20 * time.Millisecond))
	select {
	case <-d.wait():
	case <-time.After(time.Second):
		t.Fatal("deadline did not fire")
	}

	d.set(time.Time{})
	select {
	case <-d.wait():
		t.Fatal("cleared deadline still expired")
	default:
	}

	d.set(time.Now().Add(-time.Second))
	select {
	case <-d.wait():
	default:
		t.Fatal("past deadline should expire immediately")
	}
}

// TestTransport_DialOverRelay a 经中继预留并监听 /webrtc，b 通过电路地址拨 WebRTC
func TestTransport_DialOverRelay(t *testing.T) {
	if testing.Short() {
		t.Skip("webrtc loopback dial")
	}
	r := testutil.NewHost(t)
	a := testutil.NewHost(t)
	b := testutil.NewHost(t)

	cfg := config.DefaultRelayConfig()
	cfg.EnableHop = true
	srv := server.New(r, cfg, nil)
	srv.Start()
	t.Cleanup(func() { _ = srv.Stop() })

	for _, h := range []*testutil.TestHost{a, b} {
		rt := client.New(h, h.Upgrader, nil)
		require.NoError(t, h.Swarm.AddTransport(rt))
		wt := New(h, h.Upgrader, nil, nil, WithLoopbackCandidates())
		require.NoError(t, h.Swarm.AddTransport(wt))
		t.Cleanup(func() {
			_ = wt.Close()
			_ = rt.Close()
		})
	}
	require.NoError(t, a.Listen(multiaddr.StringCast("/p2p-circuit")))
	require.NoError(t, a.Listen(multiaddr.StringCast("/webrtc")))
	testutil.Connect(t, a, r)
	testutil.Connect(t, b, r)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res, err := client.Reserve(ctx, a, r.ID())
	require.NoError(t, err)
	require.NotEmpty(t, res.Addrs)

	a.SetStreamHandler(echo, func(s pkgif.Stream) {
		defer s.Close()
		_, _ = io.Copy(s, s)
	})

	target := res.Addrs[0].Encapsulate(multiaddr.StringCast("/webrtc/p2p/" + a.ID().String()))
	c, err := b.Swarm.DialAddr(ctx, target, "")
	require.NoError(t, err)
	assert.Equal(t, a.ID(), c.RemotePeer())
	assert.False(t, c.Stat().Transient)
	assert.True(t, c.RemoteMultiaddr().HasProtocol(multiaddr.P_WEBRTC))
	assert.False(t, c.RemoteMultiaddr().HasProtocol(multiaddr.P_CIRCUIT))

	s, err := b.NewStream(ctx, a.ID(), echo)
	require.NoError(t, err)
	payload := make([]byte, 64<<10)
	for i := range payload {
		payload[i] = byte(i)
	}
	_, err = s.Write(payload)
	require.NoError(t, err)
	require.NoError(t, s.CloseWrite())
	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}
