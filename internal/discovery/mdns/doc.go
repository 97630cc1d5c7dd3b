// Package mdns 提供基于 mDNS 的局域网节点发现
//
// 每个节点以自己的 PeerID 作为实例名广播 <ServiceTag>.local. 服务，
// TXT 记录携带 "dnsaddr=<addr>/p2p/<id>" 形式的完整地址。
// 查询循环定期发出多播查询，发现的对端写入 peerstore 并尝试连接。
//
// 本地地址变化时服务器按新地址重建。默认关闭，由 Discovery.MDNS.Enable 开启。
package mdns
