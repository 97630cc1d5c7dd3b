package swarm

import "errors"

var (
	// ErrSwarmClosed Swarm 已关闭
	ErrSwarmClosed = errors.New("swarm closed")

	// ErrNoTransport 没有可处理该地址的传输
	ErrNoTransport = errors.New("no transport for address")

	// ErrNoTransports 未配置任何传输
	ErrNoTransports = errors.New("no transports configured")

	// ErrDialSelf 拨号目标为本节点
	ErrDialSelf = errors.New("dial to self attempted")

	// ErrGaterDisallowed 连接门控拒绝
	ErrGaterDisallowed = errors.New("connection gated")

	// ErrNoAddresses peerstore 中没有对端地址
	ErrNoAddresses = errors.New("no addresses for peer")

	// ErrNoListenAddrs 没有任何地址监听成功
	ErrNoListenAddrs = errors.New("failed to listen on any address")
)
