// Package pubsub 实现 floodsub 风格的主题消息传播
//
// 协议标识: /meshsub/1.1.0
//
// # 核心功能
//
//  1. 订阅管理 (Subscribe / Cancel)，订阅变化时向所有对端通告
//  2. 消息发布 (Publish)，发送给所有订阅了该主题的对端
//  3. 消息转发，收到新消息后转发给至多 MeshDegree 个订阅对端
//  4. 消息去重，按可配置的标识函数（默认 msgid.Compute）记录已见消息
//  5. 签名校验，strict-sign 策略下拒绝未签名或签名无效的消息
//
// # 使用示例
//
//	ps := pubsub.New(host, priv, cfg, logger)
//	if err := ps.Start(ctx); err != nil {
//	    return err
//	}
//	defer ps.Close()
//
//	sub, err := ps.Subscribe("universal-connectivity")
//	if err != nil {
//	    return err
//	}
//	defer sub.Cancel()
//
//	_ = ps.Publish(ctx, "universal-connectivity", []byte("hello"))
//	msg, err := sub.Next(ctx)
//
// # 对端发现
//
// 新连接建立后尝试打开 gossip 流；对端不支持该协议时记为不支持，
// 直到断开连接。心跳周期为尚未建立流的已连接对端重试。
//
// # 并发安全
//
// 所有公开方法可并发调用。每个对端有独立的发送队列与写协程，
// 转发时队列已满的消息被丢弃，不阻塞接收路径。
package pubsub
