// Package protocolids 定义 ucnode 使用的全部流协议 ID。
//
// # 唯一真源原则
//
// 所有模块、测试与命令行工具在需要协议 ID 时引用本包常量，
// 不在其他位置定义字面量。
//
// 协议 ID 与 libp2p 生态保持一致，以便与其他实现的节点互通。
// DHT 协议 ID 由可配置前缀拼接，通过 DHT(prefix) 获取。
package protocolids
