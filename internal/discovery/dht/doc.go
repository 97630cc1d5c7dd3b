// Package dht 实现 Kademlia DHT 的节点路由部分
//
// 协议 ID 为 <prefix>/kad/1.0.0（前缀默认 /universal-connectivity），
// 消息格式与 libp2p kad-dht 兼容，只处理 FIND_NODE 与 PING。
//
// 客户端模式（默认）只发起查询，不注册协议处理器，也不会被其他节点
// 加入路由表。路由表只收录 identify 声明支持该协议、或成功响应过查询的节点。
//
// 键空间为节点 ID 字节的 SHA-256，距离为 XOR。
package dht
