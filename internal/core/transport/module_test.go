package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-ucnode/config"
	"github.com/dep2p/go-ucnode/internal/core/identity"
	"github.com/dep2p/go-ucnode/internal/core/upgrader"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
)

type transportsIn struct {
	fx.In

	Transports []pkgif.Transport `group:"transports"`
}

func newApp(t *testing.T, cfg *config.Config) []pkgif.Transport {
	t.Helper()
	var in transportsIn
	app := fxtest.New(t,
		fx.Supply(cfg, log.Discard()),
		identity.Module(),
		upgrader.Module(),
		Module(),
		fx.Populate(&in),
	)
	app.RequireStart()
	t.Cleanup(app.RequireStop)
	return in.Transports
}

func TestModule_AllTransports(t *testing.T) {
	ts := newApp(t, config.NewConfig())
	require.Len(t, ts, 4)

	var quic, wt, tcp, ws bool
	for _, tr := range ts {
		quic = quic || tr.CanDial(multiaddr.StringCast("/ip4/1.2.3.4/udp/1/quic-v1"))
		wt = wt || tr.CanDial(multiaddr.StringCast(config.WebTransportBootstrapNode))
		tcp = tcp || tr.CanDial(multiaddr.StringCast("/ip4/1.2.3.4/tcp/1"))
		ws = ws || tr.CanDial(multiaddr.StringCast("/ip4/1.2.3.4/tcp/1/ws"))
	}
	assert.True(t, quic)
	assert.True(t, wt)
	assert.True(t, tcp)
	assert.True(t, ws)
}

func TestModule_DisabledTransports(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Transport.EnableQUIC = false
	cfg.Transport.EnableWebTransport = false
	cfg.Transport.EnableWebSocket = false

	ts := newApp(t, cfg)
	require.Len(t, ts, 1)
	assert.Equal(t, []int{multiaddr.P_TCP}, ts[0].Protocols())
}
