package types

// GossipMessage 主题消息
//
// 接收或本地发布后不可变。消息去重只依赖 From 与 Seqno 这类元数据。
type GossipMessage struct {
	// From 原始发布者
	From PeerID

	// Data 应用负载
	Data []byte

	// Seqno 发布者单调递增的序列号
	Seqno uint64

	// Topic 主题名
	Topic string

	// Signature 发布者对消息的签名
	Signature []byte

	// Key 发布者公钥（protobuf 编码），可从 From 还原时为空
	Key []byte

	// ReceivedFrom 直接转发给本节点的对端，本地发布时为自身
	ReceivedFrom PeerID
}

// GetSeqno 返回序列号
func (m *GossipMessage) GetSeqno() uint64 {
	return m.Seqno
}
