// Package addrbook 维护本节点当前的地址集合
//
// 地址集合由 host 在监听地址、中继预约或观测地址变化时整体替换。
// 每次集合真正发生变化，Book 通过事件总线发出 types.EvtLocalAddressesChanged，
// 事件携带冻结的快照，按变化顺序投递给每个观察者。
//
// 观察者在独立的 goroutine 中被调用，不得在回调中同步调用 Update。
package addrbook
