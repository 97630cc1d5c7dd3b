package identity

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/dep2p/go-ucnode/config"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// ============================================================================
//                              Identity 实现
// ============================================================================

// Identity 节点身份
type Identity struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
	id   types.PeerID
}

var _ pkgif.Identity = (*Identity)(nil)

// New 从私钥创建身份
func New(priv crypto.PrivateKey) (*Identity, error) {
	if priv == nil {
		return nil, crypto.ErrNilPrivateKey
	}
	id, err := crypto.PeerIDFromPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("derive peer id: %w", err)
	}
	return &Identity{priv: priv, pub: priv.GetPublic(), id: id}, nil
}

// Generate 生成新的临时身份
func Generate() (*Identity, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv)
}

// Load 按配置创建身份
//
// 优先级：KeyFile（不存在且 AutoGenerate 时生成并保存）> 内存临时身份。
func Load(cfg config.IdentityConfig) (*Identity, error) {
	if cfg.KeyFile == "" {
		if !cfg.AutoGenerate {
			return nil, ErrNoIdentity
		}
		return Generate()
	}

	password := []byte(cfg.Password)
	var (
		priv crypto.PrivateKey
		err  error
	)
	if cfg.AutoGenerate {
		priv, err = crypto.LoadOrCreateKeyFile(cfg.KeyFile, password)
	} else {
		priv, err = crypto.LoadKeyFile(cfg.KeyFile, password)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoIdentity, cfg.KeyFile)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("load key file %s: %w", cfg.KeyFile, err)
	}
	return New(priv)
}

// PeerID 返回节点 ID
func (i *Identity) PeerID() types.PeerID { return i.id }

// PrivateKey 返回私钥
func (i *Identity) PrivateKey() crypto.PrivateKey { return i.priv }

// PublicKey 返回公钥
func (i *Identity) PublicKey() crypto.PublicKey { return i.pub }

// Sign 使用节点私钥签名
func (i *Identity) Sign(data []byte) ([]byte, error) {
	return i.priv.Sign(data)
}

// Verify 使用给定公钥验证签名
func Verify(pub crypto.PublicKey, data, sig []byte) (bool, error) {
	if pub == nil {
		return false, crypto.ErrNilPublicKey
	}
	return pub.Verify(data, sig)
}
