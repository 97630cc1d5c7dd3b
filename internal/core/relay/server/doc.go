// Package server 中继服务端（hop）
//
// 为其他节点提供电路中继：
//   - RESERVE：登记预约，返回本节点地址、有效期与电路限制
//   - CONNECT：为持有预约的目标打开 stop 流，成功后双向转发数据
//
// 每条电路受持续时间与单方向字节数限制，超出后两端流被重置。
// 经中继到达的连接不能再申请预约（不做多跳中继）。
package server
