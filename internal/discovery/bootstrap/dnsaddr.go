package bootstrap

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
)

const (
	// dnsaddrPrefix TXT 记录值前缀
	dnsaddrPrefix = "dnsaddr="
	// maxDNSAddrDepth dnsaddr 最大递归深度
	maxDNSAddrDepth = 4
	// dnsQueryTimeout 单次查询超时
	dnsQueryTimeout = 5 * time.Second
	// resolvConf 未指定服务器时读取的系统配置
	resolvConf = "/etc/resolv.conf"
)

// DNSAddrResolver 解析 /dnsaddr 地址
type DNSAddrResolver interface {
	Resolve(ctx context.Context, addr multiaddr.Multiaddr) ([]multiaddr.Multiaddr, error)
}

// Resolver 基于 TXT 记录的 dnsaddr 解析器
type Resolver struct {
	client *dns.Client
	server string
}

var _ DNSAddrResolver = (*Resolver)(nil)

// NewResolver 创建解析器
//
// server 为 host:port；为空时使用 /etc/resolv.conf 中的第一个服务器。
func NewResolver(server string) (*Resolver, error) {
	if server == "" {
		cfg, err := dns.ClientConfigFromFile(resolvConf)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoDNSServer, err)
		}
		if len(cfg.Servers) == 0 {
			return nil, ErrNoDNSServer
		}
		server = net.JoinHostPort(cfg.Servers[0], cfg.Port)
	}
	return &Resolver{
		client: &dns.Client{Net: "udp", Timeout: dnsQueryTimeout},
		server: server,
	}, nil
}

// Resolve 解析 /dnsaddr/<domain>[/p2p/<id>]
//
// 嵌套的 dnsaddr 记录被递归展开。原地址带 /p2p 时只保留同一节点的结果。
func (r *Resolver) Resolve(ctx context.Context, addr multiaddr.Multiaddr) ([]multiaddr.Multiaddr, error) {
	return r.resolve(ctx, addr, 0)
}

func (r *Resolver) resolve(ctx context.Context, addr multiaddr.Multiaddr, depth int) ([]multiaddr.Multiaddr, error) {
	if depth > maxDNSAddrDepth {
		return nil, ErrDNSAddrDepth
	}
	domain, err := addr.ValueForProtocol(multiaddr.P_DNSADDR)
	if err != nil {
		return nil, err
	}
	_, wantID := multiaddr.SplitP2P(addr)

	records, err := r.lookupTXT(ctx, "_dnsaddr."+domain)
	if err != nil {
		return nil, err
	}

	var out []multiaddr.Multiaddr
	for _, rec := range records {
		if !strings.HasPrefix(rec, dnsaddrPrefix) {
			continue
		}
		a, err := multiaddr.NewMultiaddr(strings.TrimPrefix(rec, dnsaddrPrefix))
		if err != nil {
			continue
		}
		if a.HasProtocol(multiaddr.P_DNSADDR) {
			sub, err := r.resolve(ctx, a, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, filterByID(sub, wantID)...)
			continue
		}
		out = append(out, filterByID([]multiaddr.Multiaddr{a}, wantID)...)
	}
	return multiaddr.UniqueAddrs(out), nil
}

func (r *Resolver) lookupTXT(ctx context.Context, name string) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeTXT)
	msg.RecursionDesired = true

	in, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	switch in.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, nil
	default:
		return nil, fmt.Errorf("query %s: %s", name, dns.RcodeToString[in.Rcode])
	}

	var out []string
	for _, rr := range in.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			out = append(out, strings.Join(txt.Txt, ""))
		}
	}
	return out, nil
}

func filterByID(addrs []multiaddr.Multiaddr, id string) []multiaddr.Multiaddr {
	if id == "" {
		return addrs
	}
	return multiaddr.FilterAddrs(addrs, func(a multiaddr.Multiaddr) bool {
		_, got := multiaddr.SplitP2P(a)
		return got == id
	})
}
