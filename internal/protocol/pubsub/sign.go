package pubsub

import (
	"fmt"

	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// signPrefix 签名内容前缀
const signPrefix = "libp2p-pubsub:"

func signContent(m *types.GossipMessage) []byte {
	return append([]byte(signPrefix), marshalMessage(m, false)...)
}

// signMessage 用节点私钥签名消息
//
// 公钥能从 From 还原时不携带 Key。
func signMessage(priv crypto.PrivateKey, m *types.GossipMessage) error {
	sig, err := priv.Sign(signContent(m))
	if err != nil {
		return err
	}
	m.Signature = sig
	if _, err := crypto.PublicKeyFromPeerID(m.From); err != nil {
		key, err := crypto.MarshalPublicKey(priv.GetPublic())
		if err != nil {
			return err
		}
		m.Key = key
	}
	return nil
}

// verifyMessage 校验消息签名
func verifyMessage(m *types.GossipMessage) error {
	if m.From == "" || len(m.Signature) == 0 {
		return ErrInvalidSignature
	}

	var (
		pub crypto.PublicKey
		err error
	)
	if len(m.Key) > 0 {
		pub, err = crypto.UnmarshalPublicKey(m.Key)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		if !crypto.PeerIDMatchesPublicKey(m.From, pub) {
			return fmt.Errorf("%w: key does not match sender", ErrInvalidSignature)
		}
	} else {
		pub, err = crypto.PublicKeyFromPeerID(m.From)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	}

	ok, err := pub.Verify(signContent(m), m.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !ok {
		return ErrInvalidSignature
	}
	return nil
}
