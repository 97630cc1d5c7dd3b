package bootstrap

import "errors"

var (
	// ErrNoBootstrapPeers 未配置引导节点
	ErrNoBootstrapPeers = errors.New("no bootstrap peers configured")
	// ErrInvalidBootstrapAddr 引导地址既没有 /p2p 段也不是 dnsaddr
	ErrInvalidBootstrapAddr = errors.New("invalid bootstrap address")
	// ErrAlreadyStarted 服务已启动
	ErrAlreadyStarted = errors.New("bootstrap already started")
	// ErrNotStarted 服务未启动
	ErrNotStarted = errors.New("bootstrap not started")
	// ErrNoDNSServer 没有可用的 DNS 服务器
	ErrNoDNSServer = errors.New("no dns server available")
	// ErrNoAddresses dnsaddr 解析结果为空
	ErrNoAddresses = errors.New("dnsaddr resolved to no addresses")
	// ErrDNSAddrDepth dnsaddr 递归过深
	ErrDNSAddrDepth = errors.New("dnsaddr recursion too deep")
)
