// Package eventbus 实现节点内事件总线
//
// 提供类型安全的事件发布/订阅机制，支持：
//   - 多订阅者，按发射顺序投递
//   - 缓冲区配置，缓冲区满时发射方阻塞（不丢弃事件）
//   - 发射器引用计数
//   - 有状态模式（Stateful）
//
// # 快速开始
//
//	bus := eventbus.NewBus()
//
//	sub, _ := bus.Subscribe(new(types.EvtLocalAddressesChanged))
//	defer sub.Close()
//
//	go func() {
//	    for evt := range sub.Out() {
//	        e := evt.(types.EvtLocalAddressesChanged)
//	        // 处理事件
//	    }
//	}()
//
//	em, _ := bus.Emitter(new(types.EvtLocalAddressesChanged))
//	defer em.Close()
//	em.Emit(types.EvtLocalAddressesChanged{...})
//
// # 慢消费者
//
// 订阅者必须持续读取 Out()；取消订阅会立即解除对发射方的阻塞。
// 每个节点持有独立的 Bus 实例，不存在进程级共享状态。
package eventbus
