// Package host 在 Swarm 之上实现协议协商与流分发
//
// 入站流通过 multistream-select 协商协议后交给已注册的处理器；
// 出站流按调用方给出的顺序尝试协议。
//
// Host 同时负责维护本节点地址：监听地址（未指定 IP 展开为接口地址）
// 与各来源登记的地址（观测地址、中继电路地址等）合并后写入地址簿，
// 地址簿再按顺序通知观察者。
package host
