package types

import "errors"

// 公共错误
var (
	// ErrInvalidPeerID 节点 ID 格式无效
	ErrInvalidPeerID = errors.New("invalid peer ID")

	// ErrEmptyPeerID 节点 ID 为空
	ErrEmptyPeerID = errors.New("empty peer ID")

	// ErrNoPeerIDInAddr 地址中不含 /p2p 段
	ErrNoPeerIDInAddr = errors.New("multiaddr does not contain a peer ID")
)
