package stun

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pion/stun"
)

const (
	defaultTimeout       = 5 * time.Second
	defaultRetries       = 2
	defaultCacheDuration = 5 * time.Minute
)

// Errors
var (
	ErrNoServers = &Error{Message: "no STUN servers"}
	ErrTimeout   = &Error{Message: "STUN request timeout"}
)

// Error STUN 错误
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return "stun: " + e.Message + ": " + e.Cause.Error()
	}
	return "stun: " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Client STUN 客户端
type Client struct {
	servers []string
	timeout time.Duration
	retries int
	clock   clock.Clock

	mu            sync.RWMutex
	cachedAddr    *net.UDPAddr
	cachedTime    time.Time
	cacheDuration time.Duration
}

// Option 客户端选项
type Option func(*Client)

// WithTimeout 设置单次请求超时
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRetries 设置每个服务器的重试次数
func WithRetries(n int) Option {
	return func(c *Client) { c.retries = n }
}

// WithClock 设置时钟
func WithClock(cl clock.Clock) Option {
	return func(c *Client) { c.clock = cl }
}

// WithCacheDuration 设置结果缓存时间
func WithCacheDuration(d time.Duration) Option {
	return func(c *Client) { c.cacheDuration = d }
}

// NewClient 创建 STUN 客户端
func NewClient(servers []string, opts ...Option) *Client {
	c := &Client{
		servers:       append([]string(nil), servers...),
		timeout:       defaultTimeout,
		retries:       defaultRetries,
		clock:         clock.New(),
		cacheDuration: defaultCacheDuration,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetExternalAddr 获取外部地址
func (c *Client) GetExternalAddr(ctx context.Context) (*net.UDPAddr, error) {
	if addr := c.getCachedAddr(); addr != nil {
		return addr, nil
	}
	if len(c.servers) == 0 {
		return nil, ErrNoServers
	}

	var lastErr error
	for _, server := range c.servers {
		for retry := 0; retry <= c.retries; retry++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			addr, err := c.queryServer(ctx, server)
			if err == nil {
				c.setCachedAddr(addr)
				return addr, nil
			}
			lastErr = err
			if retry == c.retries {
				break
			}

			// 指数退避
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-c.clock.After(time.Duration(1<<retry) * 100 * time.Millisecond):
			}
		}
	}
	if lastErr != nil {
		return nil, &Error{Message: "all servers failed", Cause: lastErr}
	}
	return nil, ErrTimeout
}

// queryServer 查询单个 STUN 服务器
func (c *Client) queryServer(ctx context.Context, server string) (*net.UDPAddr, error) {
	raddr, err := net.ResolveUDPAddr("udp", server)
	if err != nil {
		return nil, &Error{Message: "resolve server address", Cause: err}
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, &Error{Message: "dial server", Cause: err}
	}
	defer conn.Close()

	// 服务关闭时尽快退出
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	req, err := stun.Build(stun.TransactionID, stun.BindingRequest)
	if err != nil {
		return nil, &Error{Message: "build request", Cause: err}
	}
	if _, err := req.WriteTo(conn); err != nil {
		return nil, &Error{Message: "send request", Cause: err}
	}

	buf := make([]byte, 1500)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return nil, ErrTimeout
			}
			return nil, &Error{Message: "read response", Cause: err}
		}

		res := &stun.Message{Raw: append([]byte(nil), buf[:n]...)}
		if err := res.Decode(); err != nil {
			return nil, &Error{Message: "decode response", Cause: err}
		}
		// 其他事务的响应直接丢弃
		if res.TransactionID != req.TransactionID {
			continue
		}
		return mappedAddr(res)
	}
}

// mappedAddr 提取 XOR-MAPPED-ADDRESS，旧版服务器回退到 MAPPED-ADDRESS
func mappedAddr(res *stun.Message) (*net.UDPAddr, error) {
	var xorAddr stun.XORMappedAddress
	if err := xorAddr.GetFrom(res); err == nil {
		return &net.UDPAddr{IP: xorAddr.IP, Port: xorAddr.Port}, nil
	}
	var addr stun.MappedAddress
	if err := addr.GetFrom(res); err != nil {
		return nil, &Error{Message: "no mapped address in response", Cause: err}
	}
	return &net.UDPAddr{IP: addr.IP, Port: addr.Port}, nil
}

// getCachedAddr 获取缓存的地址
func (c *Client) getCachedAddr() *net.UDPAddr {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cachedAddr != nil && c.clock.Since(c.cachedTime) < c.cacheDuration {
		return c.cachedAddr
	}
	return nil
}

// setCachedAddr 设置缓存的地址
func (c *Client) setCachedAddr(addr *net.UDPAddr) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cachedAddr = addr
	c.cachedTime = c.clock.Now()
}
