package multiaddr

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// ErrNoIPAddress 地址不含 IP 段
var ErrNoIPAddress = errors.New("no IP address in multiaddr")

// ToTCPAddr 将多地址转换为 *net.TCPAddr
func (m *multiaddr) ToTCPAddr() (*net.TCPAddr, error) {
	ip, port, err := m.ipAndPort(P_TCP)
	if err != nil {
		return nil, err
	}
	return &net.TCPAddr{IP: ip, Port: port}, nil
}

// ToUDPAddr 将多地址转换为 *net.UDPAddr
func (m *multiaddr) ToUDPAddr() (*net.UDPAddr, error) {
	ip, port, err := m.ipAndPort(P_UDP)
	if err != nil {
		return nil, err
	}
	return &net.UDPAddr{IP: ip, Port: port}, nil
}

func (m *multiaddr) ipAndPort(portCode int) (net.IP, int, error) {
	ipStr, err := m.ValueForProtocol(P_IP4)
	if err != nil {
		if ipStr, err = m.ValueForProtocol(P_IP6); err != nil {
			return nil, 0, ErrNoIPAddress
		}
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return nil, 0, fmt.Errorf("invalid IP address: %s", ipStr)
	}
	portStr, err := m.ValueForProtocol(portCode)
	if err != nil {
		return nil, 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid port: %s", portStr)
	}
	return ip, port, nil
}

// HostPort 返回可用于拨号的 host:port
//
// 支持 ip4/ip6/dns/dns4/dns6 作为主机段，tcp/udp 作为端口段。
func HostPort(m Multiaddr) (network, hostport string, err error) {
	var host, port string
	for _, code := range []int{P_IP4, P_IP6, P_DNS, P_DNS4, P_DNS6} {
		if v, e := m.ValueForProtocol(code); e == nil {
			host = v
			break
		}
	}
	if host == "" {
		return "", "", fmt.Errorf("%w: %s", ErrNoIPAddress, m)
	}
	if v, e := m.ValueForProtocol(P_TCP); e == nil {
		network, port = "tcp", v
	} else if v, e := m.ValueForProtocol(P_UDP); e == nil {
		network, port = "udp", v
	} else {
		return "", "", fmt.Errorf("no port in multiaddr: %s", m)
	}
	return network, net.JoinHostPort(host, port), nil
}

// FromTCPAddr 从 *net.TCPAddr 创建多地址
func FromTCPAddr(addr *net.TCPAddr) (Multiaddr, error) {
	if addr == nil {
		return nil, errors.New("nil TCP address")
	}
	return fromIPPort(addr.IP, "tcp", addr.Port)
}

// FromUDPAddr 从 *net.UDPAddr 创建多地址
func FromUDPAddr(addr *net.UDPAddr) (Multiaddr, error) {
	if addr == nil {
		return nil, errors.New("nil UDP address")
	}
	return fromIPPort(addr.IP, "udp", addr.Port)
}

func fromIPPort(ip net.IP, transport string, port int) (Multiaddr, error) {
	family := "ip6"
	if ip4 := ip.To4(); ip4 != nil {
		family = "ip4"
		ip = ip4
	}
	return NewMultiaddr(fmt.Sprintf("/%s/%s/%s/%d", family, ip.String(), transport, port))
}

// FromNetAddr 从 net.Addr 创建多地址
func FromNetAddr(addr net.Addr) (Multiaddr, error) {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return FromTCPAddr(a)
	case *net.UDPAddr:
		return FromUDPAddr(a)
	case nil:
		return nil, errors.New("nil address")
	default:
		return nil, fmt.Errorf("unsupported address type: %T", addr)
	}
}

// IsLoopback 判断地址主机段是否为回环地址
func IsLoopback(m Multiaddr) bool {
	for _, code := range []int{P_IP4, P_IP6} {
		if v, err := m.ValueForProtocol(code); err == nil {
			ip := net.ParseIP(v)
			return ip != nil && ip.IsLoopback()
		}
	}
	return false
}

// IsPublic 判断地址是否为公网可路由地址（域名视为公网）
func IsPublic(m Multiaddr) bool {
	for _, code := range []int{P_IP4, P_IP6} {
		if v, err := m.ValueForProtocol(code); err == nil {
			ip := net.ParseIP(v)
			return ip != nil && ip.IsGlobalUnicast() && !ip.IsPrivate()
		}
	}
	for _, code := range []int{P_DNS, P_DNS4, P_DNS6, P_DNSADDR} {
		if _, err := m.ValueForProtocol(code); err == nil {
			return true
		}
	}
	return false
}
