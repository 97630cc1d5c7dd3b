package client

import (
	"github.com/dep2p/go-ucnode/pkg/lib/multiaddr"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// circuitAddr 解析后的电路地址
type circuitAddr struct {
	// relayAddr 中继的传输地址（可为空，此时使用 peerstore 中的地址）
	relayAddr multiaddr.Multiaddr
	relay     types.PeerID
	dest      types.PeerID
}

// parseCircuitAddr 解析 [<transport>]/p2p/<relay>/p2p-circuit[/p2p/<dest>]
//
// /p2p-circuit 之后还有其他协议（如 /webrtc）时返回 false。
func parseCircuitAddr(addr multiaddr.Multiaddr) (circuitAddr, bool) {
	var out circuitAddr
	if addr == nil {
		return out, false
	}
	parts := multiaddr.Split(addr)
	idx := -1
	for i, p := range parts {
		if p.ProtoCodes()[0] == multiaddr.P_CIRCUIT {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return out, false
	}

	transport, relayID := multiaddr.SplitP2P(multiaddr.Join(parts[:idx]...))
	if relayID == "" {
		return out, false
	}
	relay, err := types.ParsePeerID(relayID)
	if err != nil {
		return out, false
	}
	out.relay = relay
	if len(parts[:idx]) > 1 {
		out.relayAddr = transport
	}

	rest := parts[idx+1:]
	switch len(rest) {
	case 0:
	case 1:
		v, err := rest[0].ValueForProtocol(multiaddr.P_P2P)
		if err != nil {
			return out, false
		}
		if out.dest, err = types.ParsePeerID(v); err != nil {
			return out, false
		}
	default:
		return out, false
	}
	return out, true
}

// CircuitAddr 构造 <relayAddr>/p2p/<relay>/p2p-circuit
func CircuitAddr(relayAddr multiaddr.Multiaddr, relay types.PeerID) (multiaddr.Multiaddr, error) {
	transport, _ := multiaddr.SplitP2P(relayAddr)
	withID, err := multiaddr.WithP2P(transport, relay.String())
	if err != nil {
		return nil, err
	}
	circuit, err := multiaddr.NewMultiaddr("/p2p-circuit")
	if err != nil {
		return nil, err
	}
	return withID.Encapsulate(circuit), nil
}
