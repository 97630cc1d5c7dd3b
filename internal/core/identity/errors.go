package identity

import "errors"

var (
	// ErrNoIdentity 既未注入私钥，也未允许生成
	ErrNoIdentity = errors.New("no identity: key file missing and auto generate disabled")

	// ErrKeyMismatch 注入的私钥与期望的 PeerID 不一致
	ErrKeyMismatch = errors.New("private key does not match peer id")
)
