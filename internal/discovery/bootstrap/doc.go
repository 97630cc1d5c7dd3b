// Package bootstrap 连接配置的引导节点并保持连接
//
// 引导地址必须以 /p2p/<id> 结尾，或为 /dnsaddr/<domain>。同一节点的多个地址
// 合并为一个 AddrInfo。dnsaddr 地址在每次连接前通过 TXT 记录
// _dnsaddr.<domain> 解析（可递归）。
//
// 每个引导节点由独立的 goroutine 维护：未连接时尝试连接，失败后按指数退避
// 重试（BootstrapMinBackoff 到 BootstrapMaxBackoff）；断开后立即重新开始。
// 引导节点不可达不会影响节点其余部分。
package bootstrap
