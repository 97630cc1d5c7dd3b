package types

// Direction 连接由哪一端发起
type Direction int

const (
	DirUnknown  Direction = iota
	DirInbound            // 对端拨入
	DirOutbound           // 本端拨出
)

var directionNames = [...]string{"unknown", "inbound", "outbound"}

func (d Direction) String() string {
	if d < 0 || int(d) >= len(directionNames) {
		return directionNames[DirUnknown]
	}
	return directionNames[d]
}

// Reachability AutoNAT 对本节点公网可达性的判定
//
// Private 时节点通过中继预留对外提供 /p2p-circuit 地址。
type Reachability int

const (
	ReachabilityUnknown Reachability = iota
	ReachabilityPublic
	ReachabilityPrivate
)

var reachabilityNames = [...]string{"unknown", "public", "private"}

func (r Reachability) String() string {
	if r < 0 || int(r) >= len(reachabilityNames) {
		return reachabilityNames[ReachabilityUnknown]
	}
	return reachabilityNames[r]
}
