package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-ucnode/config"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
)

func TestModule(t *testing.T) {
	var id pkgif.Identity
	app := fxtest.New(t,
		fx.Supply(config.NewConfig(), log.Discard()),
		Module(),
		fx.Populate(&id),
	)
	app.RequireStart()
	defer app.RequireStop()

	require.NotNil(t, id)
	assert.False(t, id.PeerID().IsEmpty())
}

func TestModule_InjectedKey(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	want, err := crypto.PeerIDFromPrivateKey(priv)
	require.NoError(t, err)

	var id pkgif.Identity
	app := fxtest.New(t,
		fx.Supply(config.NewConfig(), log.Discard()),
		fx.Provide(func() crypto.PrivateKey { return priv }),
		Module(),
		fx.Populate(&id),
	)
	app.RequireStart()
	defer app.RequireStop()

	assert.Equal(t, want, id.PeerID())
}
