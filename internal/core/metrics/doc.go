// Package metrics 提供节点级监控指标
//
// 每个节点持有独立的 prometheus.Registry，同一进程内的多个节点互不干扰。
// 指标分为：
//   - gossip：发布、投递、重复、拒绝的消息数
//   - 拨号：按结果与传输统计的拨号次数
//   - 连接：当前连接数
//   - 带宽：按协议统计的收发字节数
//   - 中继：当前持有的预约数
//
// # 快速开始
//
//	m := metrics.New("ucnode")
//	m.GossipPublished.WithLabelValues(topic).Inc()
//	http.Handle("/metrics", m.Handler())
package metrics
