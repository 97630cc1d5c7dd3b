// Package peerstore 实现对端信息存储
//
// Peerstore 保存对端的地址（带 TTL）、公钥和支持的协议。
// 对端记录数量受 LRU 上限约束，超出时淘汰最久未访问且未连接的对端。
//
// 对端地址集合变化时发出 types.EvtPeerAddrsChanged。
package peerstore
