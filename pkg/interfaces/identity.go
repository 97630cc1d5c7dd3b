package interfaces

import (
	"github.com/dep2p/go-ucnode/pkg/lib/crypto"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// Identity 节点身份
type Identity interface {
	// PeerID 返回节点 ID
	PeerID() types.PeerID

	// PrivateKey 返回私钥
	PrivateKey() crypto.PrivateKey

	// PublicKey 返回公钥
	PublicKey() crypto.PublicKey

	// Sign 使用节点私钥签名
	Sign(data []byte) ([]byte, error)
}

// AddressBook 本节点地址集合
type AddressBook interface {
	// Snapshot 返回当前地址集合快照
	Snapshot() types.AddressSet

	// Update 整体替换地址集合，集合变化时按顺序通知观察者
	Update(addrs types.AddressSet) bool

	// OnLocalAddressesChanged 注册地址变化观察者，返回取消函数
	OnLocalAddressesChanged(handler func(types.EvtLocalAddressesChanged)) (cancel func())
}
